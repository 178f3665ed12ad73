// Package control exposes a running session over a per-session unix
// socket: port toggles, port/log queries, live follows, and stop requests.
// Requests and responses are single JSON lines; a follow op streams
// response lines until the client disconnects.
package control

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// Operations accepted by the session control server.
const (
	OpPortList    = "port-list"
	OpPortEnable  = "port-enable"
	OpPortDisable = "port-disable"
	OpPortWatch   = "port-watch"
	OpLogTail     = "log-tail"
	OpLogFollow   = "log-follow"
	OpStop        = "stop"
)

// Request is one command sent over the session socket.
type Request struct {
	Op   string `json:"op"`
	Port uint16 `json:"port,omitempty"`
	Tail int    `json:"tail,omitempty"`
}

// PortState mirrors a ports.Snapshot for the wire.
type PortState struct {
	Enabled  []uint16 `json:"enabled"`
	Active   []uint16 `json:"active"`
	Inactive []uint16 `json:"inactive"`
}

// LogLine is one guest log entry on the wire.
type LogLine struct {
	Time string `json:"time"`
	Tag  string `json:"tag"`
	Line string `json:"line"`
}

// Response answers a Request. Follow ops send one Response per update.
type Response struct {
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	Ports *PortState `json:"ports,omitempty"`
	Lines []LogLine  `json:"lines,omitempty"`
}

// SocketPath returns the control socket path for a session, creating the
// sessions directory if needed.
func SocketPath(sessionID string) (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".vmbridge", "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return filepath.Join(dir, sessionID+".sock"), nil
}

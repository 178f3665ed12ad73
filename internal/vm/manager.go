package vm

import (
	"fmt"
	"os"

	"github.com/vmbridge/vmbridge/internal/session"
)

func debugLog(format string, args ...interface{}) {
	if os.Getenv("VMBRIDGE_DEBUG") == "1" {
		fmt.Printf("[DEBUG:VM] "+format+"\n", args...)
	}
}

// Manager creates and controls guest instances on one host platform.
type Manager interface {
	// Create prepares a session for the given definition without booting.
	Create(def *Definition, level DebugLevel) (*session.Session, error)

	// Start boots the session's guest and returns its Instance surface.
	Start(sess *session.Session) (Instance, error)

	// Stop shuts the guest down; the instance's streams reach EOF as a
	// consequence.
	Stop(id string) error

	// List returns all recorded sessions.
	List() ([]*session.Session, error)

	// WaitForStop returns a channel closed once the guest has stopped.
	WaitForStop(id string) <-chan struct{}
}

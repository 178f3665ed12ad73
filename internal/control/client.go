package control

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// Client talks to a running session's control socket.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the control socket of a session. A missing or dead
// socket means the session is not running.
func Dial(sessionID string) (*Client, error) {
	socketPath, err := SocketPath(sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("session %s is not running (no control socket)", sessionID)
	}

	client, err := DialPath(socketPath)
	if err != nil {
		// Stale socket from a crashed session process.
		os.Remove(socketPath)
		return nil, fmt.Errorf("session %s is no longer running (cleaned up stale socket)", sessionID)
	}
	return client, nil
}

// DialPath connects to a control socket directly.
func DialPath(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(req *Request) (*Response, error) {
	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", req.Op, err)
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Op, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s rejected: %s", req.Op, resp.Error)
	}
	return &resp, nil
}

// PortList returns the session's current port state.
func (c *Client) PortList() (*PortState, error) {
	resp, err := c.roundTrip(&Request{Op: OpPortList})
	if err != nil {
		return nil, err
	}
	return resp.Ports, nil
}

// SetPortEnabled toggles user intent for one port.
func (c *Client) SetPortEnabled(port uint16, enabled bool) (*PortState, error) {
	op := OpPortEnable
	if !enabled {
		op = OpPortDisable
	}
	resp, err := c.roundTrip(&Request{Op: op, Port: port})
	if err != nil {
		return nil, err
	}
	return resp.Ports, nil
}

// WatchPorts streams port snapshots, starting with the current state, and
// calls fn for each until the connection drops or fn returns false.
func (c *Client) WatchPorts(fn func(*PortState) bool) error {
	if err := c.enc.Encode(&Request{Op: OpPortWatch}); err != nil {
		return fmt.Errorf("failed to send %s: %w", OpPortWatch, err)
	}
	for {
		var resp Response
		if err := c.dec.Decode(&resp); err != nil {
			return nil // session ended
		}
		if !resp.OK {
			return fmt.Errorf("%s rejected: %s", OpPortWatch, resp.Error)
		}
		if !fn(resp.Ports) {
			return nil
		}
	}
}

// LogTail returns the most recent n guest log lines.
func (c *Client) LogTail(n int) ([]LogLine, error) {
	resp, err := c.roundTrip(&Request{Op: OpLogTail, Tail: n})
	if err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// FollowLogs streams guest log lines, starting with the buffered ones, and
// calls fn for each until the connection drops or fn returns false.
func (c *Client) FollowLogs(fn func(LogLine) bool) error {
	if err := c.enc.Encode(&Request{Op: OpLogFollow}); err != nil {
		return fmt.Errorf("failed to send %s: %w", OpLogFollow, err)
	}
	for {
		var resp Response
		if err := c.dec.Decode(&resp); err != nil {
			return nil // session ended
		}
		if !resp.OK {
			return fmt.Errorf("%s rejected: %s", OpLogFollow, resp.Error)
		}
		for _, line := range resp.Lines {
			if !fn(line) {
				return nil
			}
		}
	}
}

// Stop asks the session process to shut down.
func (c *Client) Stop() error {
	_, err := c.roundTrip(&Request{Op: OpStop})
	return err
}

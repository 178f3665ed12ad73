package control

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/vmbridge/vmbridge/internal/logring"
	"github.com/vmbridge/vmbridge/internal/ports"
)

// Server answers control requests for one running session. It lives in the
// session process next to the bridge; clients are other vmbridge
// invocations (`ports`, `logs`, `stop`).
type Server struct {
	socketPath  string
	rec         *ports.Reconciler
	logs        *logring.Ring
	requestStop func() // invoked once on an OpStop request

	listener net.Listener
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewServer creates a control server on socketPath. requestStop is called
// when a client asks the session to stop; it must not block.
func NewServer(socketPath string, rec *ports.Reconciler, logs *logring.Ring, requestStop func()) *Server {
	return &Server{
		socketPath:  socketPath,
		rec:         rec,
		logs:        logs,
		requestStop: requestStop,
		done:        make(chan struct{}),
	}
}

// Start begins accepting connections on the unix socket. A stale socket
// from a crashed session is removed first.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on control socket: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// SocketPath returns the unix socket path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return // client disconnected or sent garbage
		}
		if !s.handleRequest(&req, enc) {
			return
		}
	}
}

// handleRequest answers one request; a false return ends the connection.
func (s *Server) handleRequest(req *Request, enc *json.Encoder) bool {
	switch req.Op {
	case OpPortList:
		return s.send(enc, &Response{OK: true, Ports: portState(s.rec.Current())})

	case OpPortEnable, OpPortDisable:
		if err := ports.Validate(int(req.Port)); err != nil {
			return s.send(enc, &Response{Error: err.Error()})
		}
		s.rec.SetEnabled(req.Port, req.Op == OpPortEnable)
		return s.send(enc, &Response{OK: true, Ports: portState(s.rec.Current())})

	case OpPortWatch:
		return s.watchPorts(enc)

	case OpLogTail:
		return s.send(enc, &Response{OK: true, Lines: logLines(s.logs.Tail(req.Tail))})

	case OpLogFollow:
		return s.followLogs(enc)

	case OpStop:
		s.requestStop()
		return s.send(enc, &Response{OK: true})

	default:
		return s.send(enc, &Response{Error: fmt.Sprintf("unknown op %q", req.Op)})
	}
}

// watchPorts streams a snapshot response per state change until the client
// disconnects or the server stops. The current state is sent first.
func (s *Server) watchPorts(enc *json.Encoder) bool {
	// Subscribe before reading the current state so no change between the
	// two is lost.
	ch, unsub := s.rec.Subscribe()
	defer unsub()

	if !s.send(enc, &Response{OK: true, Ports: portState(s.rec.Current())}) {
		return false
	}

	for {
		select {
		case <-s.done:
			return false
		case snap, ok := <-ch:
			if !ok {
				return false
			}
			if !s.send(enc, &Response{OK: true, Ports: portState(snap)}) {
				return false
			}
		}
	}
}

// followLogs streams buffered entries, then each new entry as it arrives.
func (s *Server) followLogs(enc *json.Encoder) bool {
	ch, existing, unsub := s.logs.Subscribe()
	defer unsub()

	if !s.send(enc, &Response{OK: true, Lines: logLines(existing)}) {
		return false
	}

	for {
		select {
		case <-s.done:
			return false
		case entry, ok := <-ch:
			if !ok {
				return false
			}
			if !s.send(enc, &Response{OK: true, Lines: logLines([]logring.Entry{entry})}) {
				return false
			}
		}
	}
}

func (s *Server) send(enc *json.Encoder, resp *Response) bool {
	return enc.Encode(resp) == nil
}

// Stop closes the listener, waits for in-flight connections, and removes
// the socket file. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func portState(snap ports.Snapshot) *PortState {
	return &PortState{
		Enabled:  emptyNotNil(snap.Enabled),
		Active:   emptyNotNil(snap.Active),
		Inactive: emptyNotNil(snap.Inactive),
	}
}

func emptyNotNil(ps []uint16) []uint16 {
	if ps == nil {
		return []uint16{}
	}
	return ps
}

func logLines(entries []logring.Entry) []LogLine {
	out := make([]LogLine, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogLine{
			Time: e.Time.Format("15:04:05.000"),
			Tag:  e.Tag,
			Line: e.Line,
		})
	}
	return out
}

package smtptest

import (
	"net"
	"sync"
)

// SilentServer accepts TCP connections and never says anything, not even
// the SMTP greeting. Use it to check that clients give up after their
// timeout instead of hanging.
type SilentServer struct {
	listener net.Listener
	mu       sync.Mutex
	conns    []net.Conn
	done     chan struct{}
}

// NewSilentServer listens on a random local port. Call Start to begin
// accepting connections.
func NewSilentServer() (*SilentServer, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return &SilentServer{
		listener: l,
		done:     make(chan struct{}),
	}, nil
}

// Start accepts connections and holds them open until Close. Blocking.
func (ss *SilentServer) Start() error {
	for {
		c, err := ss.listener.Accept()
		if err != nil {
			select {
			case <-ss.done:
				return nil
			default:
				return err
			}
		}
		ss.mu.Lock()
		select {
		case <-ss.done:
			// Close already dropped the held connections.
			ss.mu.Unlock()
			c.Close()
			return nil
		default:
		}
		ss.conns = append(ss.conns, c)
		ss.mu.Unlock()
	}
}

// Close stops listening and drops every held connection.
func (ss *SilentServer) Close() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	select {
	case <-ss.done:
		return
	default:
		close(ss.done)
	}
	ss.listener.Close()

	for _, c := range ss.conns {
		c.Close()
	}
	ss.conns = nil
}

// RetrieveEmails always returns nothing, since no email can get through.
func (ss *SilentServer) RetrieveEmails(_ int64) ([]string, error) {
	return []string{}, nil
}

// Address returns the host:port of the server.
func (ss *SilentServer) Address() string {
	return ss.listener.Addr().String()
}

package relay

import (
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"video-streamer/internal/platform/metrics"
)

const (
	// acceptWait bounds how long AcceptOne waits for a pending connection,
	// keeping the relay loop's accept step effectively non-blocking.
	acceptWait = time.Millisecond

	// clientWriteTimeout bounds a broadcast write to a single client. A client
	// whose socket buffer stays full this long is treated the same as a dead
	// one: cut loose rather than allowed to stall delivery to the others.
	clientWriteTimeout = 10 * time.Millisecond
)

// client is one downstream consumer of the stream.
type client struct {
	id   uuid.UUID
	conn net.Conn
}

// Registry owns the set of connected downstream clients. It is mutated only
// by the relay loop goroutine, so it does no locking; broadcast iteration and
// add/remove never interleave.
type Registry struct {
	clients []client
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewRegistry returns an empty registry. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewRegistry(log *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{log: log, metrics: m}
}

// Len returns the number of currently connected clients.
func (r *Registry) Len() int {
	return len(r.clients)
}

// AcceptOne polls the listener for at most one pending connection. It returns
// (nil, nil) when no connection arrived within the accept window; any other
// error means the listener itself has failed.
func (r *Registry) AcceptOne(l net.Listener) (net.Conn, error) {
	if d, ok := l.(interface{ SetDeadline(time.Time) error }); ok {
		_ = d.SetDeadline(time.Now().Add(acceptWait))
	}
	conn, err := l.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return conn, nil
}

// Add registers a newly accepted connection.
func (r *Registry) Add(conn net.Conn) {
	c := client{id: uuid.New(), conn: conn}
	r.clients = append(r.clients, c)
	r.log.Info("accepted new client",
		slog.String("client_id", c.id.String()),
		slog.String("remote_addr", conn.RemoteAddr().String()),
		slog.Int("clients", len(r.clients)))
	if r.metrics != nil {
		r.metrics.IncClientsAccepted()
		r.metrics.SetClientsConnected(len(r.clients))
	}
}

// BroadcastAndPrune writes chunk in full to every client and removes the ones
// whose write fails. A failed or timed-out write means the client is gone;
// there is no retry or throttling at the single-client level.
func (r *Registry) BroadcastAndPrune(chunk []byte) {
	kept := r.clients[:0]
	for _, c := range r.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if _, err := c.conn.Write(chunk); err != nil {
			r.log.Info("removing client",
				slog.String("client_id", c.id.String()),
				slog.String("error", err.Error()))
			_ = c.conn.Close()
			if r.metrics != nil {
				r.metrics.IncClientsDropped()
			}
			continue
		}
		kept = append(kept, c)
	}
	// Clear the tail so dropped connections are not retained by the backing array.
	for i := len(kept); i < len(r.clients); i++ {
		r.clients[i] = client{}
	}
	r.clients = kept
	if r.metrics != nil {
		r.metrics.SetClientsConnected(len(r.clients))
	}
}

// CloseAll closes every registered connection and empties the registry.
// Used only at shutdown; safe to call on an already-empty registry.
func (r *Registry) CloseAll() {
	for _, c := range r.clients {
		_ = c.conn.Close()
	}
	r.clients = nil
	if r.metrics != nil {
		r.metrics.SetClientsConnected(0)
	}
}

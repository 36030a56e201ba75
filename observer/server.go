package observer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/pthm-cable/flock/systems"
)

// Source provides the static scene for the bootstrap endpoint. Both
// methods must be safe to call from HTTP goroutines.
type Source interface {
	RunID() string
	Index() *systems.ObstacleIndex
}

// rejectReason is sent when the handshake is not a valid SUBSCRIBE. Close
// reasons must fit a control frame, so validation detail stays in the log.
const rejectReason = "expected SUBSCRIBE"

// Server exposes the hub over HTTP and websocket.
type Server struct {
	hub   *Hub
	src   Source
	maxHz float64

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewServer creates a server. maxHz caps every subscriber's frame rate.
func NewServer(hub *Hub, src Source, maxHz float64) *Server {
	return &Server{
		hub:   hub,
		src:   src,
		maxHz: maxHz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler routes /observer/bootstrap and /observer/ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/observer/ws", s.WSHandler())
	return mux
}

// BootstrapHandler serves the grid description and voxel usage counts.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := BootstrapResponse{
			ProtocolVersion: Version,
			RunID:           s.src.RunID(),
			Tick:            s.hub.LastTick(),
		}
		if ix := s.src.Index(); ix != nil {
			g := ix.Grid()
			c, e := g.Center(), g.Extent()
			resp.Grid = GridParams{
				Center:     [3]float64{c.X, c.Y, c.Z},
				Extent:     [3]float64{e.X, e.Y, e.Z},
				VoxelSize:  g.VoxelSize(),
				Resolution: g.Resolution(),
			}
			resp.Probes = ix.ProbeCount()
			resp.Usage = ix.UsageCounts()
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// WSHandler upgrades the connection, waits for SUBSCRIBE and streams frames.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, err := parseSubscribe(msg)
		if err != nil {
			slog.Debug("rejecting observer handshake", "remote", r.RemoteAddr, "error", err)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, rejectReason), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub, s.maxHz)

		id := s.nextID.Add(1)
		out := make(chan outMsg, 8)
		if !s.hub.add(&subscriber{
			id:      id,
			format:  sub.Format,
			limiter: rate.NewLimiter(rate.Limit(sub.MaxHz), 1),
			out:     out,
		}) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		defer s.hub.remove(id)
		slog.Info("observer subscribed", "subscriber", id, "format", sub.Format, "max_hz", sub.MaxHz)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case m, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(m.kind, m.data); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, err := parseSubscribe(msg)
			if err != nil {
				slog.Debug("ignoring observer message", "subscriber", id, "error", err)
				continue
			}
			normalizeSubscribe(&sub, s.maxHz)
			s.hub.update(id, sub)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

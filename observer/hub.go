package observer

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/pthm-cable/flock/systems"
)

// subscriber is one connected viewer.
type subscriber struct {
	id      uint64
	format  string
	limiter *rate.Limiter
	out     chan outMsg
}

// outMsg is one websocket message queued for a subscriber.
type outMsg struct {
	kind int
	data []byte
}

// Hub fans published frames out to subscribers. Publish never blocks the
// simulation: frames are dropped when the hub or a subscriber falls behind.
type Hub struct {
	frames chan *frame
	done   chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	subs map[uint64]*subscriber

	lastTick atomic.Int32
	dropped  atomic.Uint64
	stopOnce sync.Once
}

// NewHub creates a hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		frames: make(chan *frame, 4),
		done:   make(chan struct{}),
		subs:   make(map[uint64]*subscriber),
	}
	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

// Publish copies records and queues the frame for broadcast.
func (h *Hub) Publish(tick int32, simTime float64, records []systems.AgentRecord) {
	h.lastTick.Store(tick)

	h.mu.Lock()
	n := len(h.subs)
	h.mu.Unlock()
	if n == 0 {
		return
	}

	f := &frame{tick: tick, time: simTime, records: append([]systems.AgentRecord(nil), records...)}
	select {
	case h.frames <- f:
	default:
		if h.dropped.Add(1)%100 == 1 {
			slog.Warn("observer frame dropped", "tick", tick, "dropped_total", h.dropped.Load())
		}
	}
}

// LastTick returns the tick of the most recent Publish.
func (h *Hub) LastTick() int32 { return h.lastTick.Load() }

// Subscribers returns the number of connected viewers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close stops the broadcast loop and closes every subscriber channel.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for id, s := range h.subs {
			close(s.out)
			delete(h.subs, id)
		}
		h.mu.Unlock()
	})
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.subs[s.id] = s
	return true
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		close(s.out)
		delete(h.subs, id)
	}
}

// update replaces the settings of a subscriber.
func (h *Hub) update(id uint64, sub SubscribeMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		s.format = sub.Format
		s.limiter.SetLimit(rate.Limit(sub.MaxHz))
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case f := <-h.frames:
			h.broadcast(f)
		}
	}
}

// broadcast encodes f at most once per format and offers it to every
// subscriber whose rate limit allows a frame.
func (h *Hub) broadcast(f *frame) {
	var jsonMsg, binMsg []byte

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if !s.limiter.Allow() {
			continue
		}
		var msg outMsg
		switch s.format {
		case FormatBinary:
			if binMsg == nil {
				binMsg = f.encodeBinary()
			}
			msg = outMsg{kind: websocket.BinaryMessage, data: binMsg}
		default:
			if jsonMsg == nil {
				b, err := f.encodeJSON()
				if err != nil {
					slog.Error("failed to encode frame", "tick", f.tick, "error", err)
					return
				}
				jsonMsg = b
			}
			msg = outMsg{kind: websocket.TextMessage, data: jsonMsg}
		}
		select {
		case s.out <- msg:
		default:
			// subscriber is behind; skip this frame
		}
	}
}

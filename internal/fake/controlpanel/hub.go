package controlpanel

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// Stream event names.
const (
	EventStatusChanged = "statuschanged"
	EventNotify        = "notify"
	EventSysstat       = "sysstat"
)

const (
	sysstatHistory = 100
	subscriberBuf  = 64
)

type frame struct {
	id    uint64
	event string
	data  []byte
}

type subscriber struct {
	frames chan frame
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// hub fans published events out to every open stream. New streams first
// receive the latest status and the sysstat history.
type hub struct {
	mu        sync.Mutex
	nextID    uint64
	status    *frame
	sysstat   []frame
	subs      map[*subscriber]struct{}
	suspended bool
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) publish(event string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	f := frame{id: h.nextID, event: event, data: data}
	switch event {
	case EventStatusChanged:
		h.status = &f
	case EventSysstat:
		h.sysstat = append(h.sysstat, f)
		if len(h.sysstat) > sysstatHistory {
			h.sysstat = h.sysstat[len(h.sysstat)-sysstatHistory:]
		}
	}

	for sub := range h.subs {
		select {
		case sub.frames <- f:
		default:
			// A stalled reader is cut off; it reconnects with Last-Event-ID.
			delete(h.subs, sub)
			sub.close()
		}
	}
}

// subscribe registers a stream and returns its backlog. Sysstat frames at
// or before lastID are skipped; the latest status is always replayed so a
// reconnecting client leaves its disconnected state.
func (h *hub) subscribe(lastID uint64) (*subscriber, []frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.suspended {
		return nil, nil, false
	}

	var backlog []frame
	if h.status != nil {
		backlog = append(backlog, *h.status)
	}
	for _, f := range h.sysstat {
		if f.id > lastID {
			backlog = append(backlog, f)
		}
	}

	sub := &subscriber{frames: make(chan frame, subscriberBuf), done: make(chan struct{})}
	h.subs[sub] = struct{}{}
	return sub, backlog, true
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
	sub.close()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		delete(h.subs, sub)
		sub.close()
	}
}

func (h *hub) setSuspended(v bool) {
	h.mu.Lock()
	h.suspended = v
	h.mu.Unlock()
	if v {
		h.closeAll()
	}
}

// PublishStatus broadcasts a status change.
func (s *Server) PublishStatus(ev types.StatusEvent) {
	s.publish(EventStatusChanged, ev)
}

// PublishNotify broadcasts a notification.
func (s *Server) PublishNotify(ev types.NotifyEvent) {
	s.publish(EventNotify, ev)
}

// PublishSysstat broadcasts a CPU usage sample.
func (s *Server) PublishSysstat(ev types.SysstatEvent) {
	s.publish(EventSysstat, ev)
}

// PublishRaw broadcasts a payload as is, for exercising client handling of
// malformed events.
func (s *Server) PublishRaw(event string, data []byte) {
	s.hub.publish(event, data)
}

func (s *Server) publish(event string, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.log.Error("encode stream event", logging.Event(event), zap.Error(err))
		return
	}
	s.hub.publish(event, data)
}

// DropStreams closes every open stream. Clients may reconnect at once.
func (s *Server) DropStreams() {
	s.hub.closeAll()
}

// SuspendStreams closes every open stream and refuses new ones until
// ResumeStreams, simulating an outage.
func (s *Server) SuspendStreams() {
	s.hub.setSuspended(true)
}

// ResumeStreams accepts streams again.
func (s *Server) ResumeStreams() {
	s.hub.setSuspended(false)
}

// StreamCount returns the number of open streams.
func (s *Server) StreamCount() int {
	return s.hub.count()
}

func (s *Server) handleStream(c *gin.Context) {
	lastID, _ := strconv.ParseUint(c.GetHeader("Last-Event-ID"), 10, 64)

	sub, backlog, accepted := s.hub.subscribe(lastID)
	if !accepted {
		fail(c, http.StatusServiceUnavailable, types.ErrAgain)
		return
	}
	defer s.hub.unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	retry := uint(s.opts.StreamRetry / time.Millisecond)
	write := func(f frame) {
		c.Render(-1, sse.Event{
			Id:    strconv.FormatUint(f.id, 10),
			Event: f.event,
			Retry: retry,
			Data:  string(f.data),
		})
	}

	for _, f := range backlog {
		write(f)
	}
	c.Writer.Flush()

	keepAlive := time.NewTicker(s.opts.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-sub.done:
			return
		case f := <-sub.frames:
			write(f)
			c.Writer.Flush()
		case <-keepAlive.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

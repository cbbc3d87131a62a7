package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

type statusCall struct {
	code  types.EventCode
	extra *types.StatusExtra
	page  *types.PageCode
}

type recorder struct {
	mu       sync.Mutex
	statuses []statusCall
	samples  []types.SysstatEvent
	notes    []types.NotifyEvent
}

func (r *recorder) UpdateStatus(code types.EventCode, extra *types.StatusExtra, page *types.PageCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, statusCall{code, extra, page})
}

func (r *recorder) UpdateCPUUsage(sample types.SysstatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
}

func (r *recorder) Notify(ev types.NotifyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, ev)
}

func (r *recorder) codes() []types.EventCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventCode, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.code
	}
	return out
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses) + len(r.samples) + len(r.notes)
}

func writeEvent(w http.ResponseWriter, lines string) {
	fmt.Fprint(w, lines)
	w.(http.Flusher).Flush()
}

func startStream(t *testing.T, srv *httptest.Server, rec *recorder, token string) *Conn {
	t.Helper()
	c := New(srv.Client(), srv.URL, Options{
		Token:        func() string { return token },
		Status:       rec,
		CPU:          rec,
		Notifier:     rec,
		RetryInitial: 10 * time.Millisecond,
		RetryMax:     40 * time.Millisecond,
	})
	conn := c.Connect(context.Background())
	t.Cleanup(conn.Close)
	return conn
}

func TestEventsAreDispatchedToSinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, "event: statuschanged\ndata: {\"eventCode\":8,\"extra\":{\"progress\":50,\"textData\":\"x\"},\"pageCode\":3}\n\n")
		writeEvent(w, "event: statuschanged\ndata: not json\n\n")
		writeEvent(w, "event: event\ndata: {\"eventCode\":9}\n\n")
		writeEvent(w, "event: sysstat\ndata: {\"cpuUsage\":12.5,\"time\":1000}\n\n")
		writeEvent(w, "event: notify\ndata: {\"infoCode\":1,\"isError\":false}\n\n")
		writeEvent(w, "event: mystery\ndata: {}\n\n")
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	startStream(t, srv, rec, "")

	require.Eventually(t, func() bool { return rec.total() == 4 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.statuses, 2)
	assert.Equal(t, types.EventRunning, rec.statuses[0].code)
	assert.Equal(t, &types.StatusExtra{Progress: 50, TextData: "x"}, rec.statuses[0].extra)
	assert.Equal(t, types.PageRunning, *rec.statuses[0].page)
	assert.Equal(t, types.EventStopping, rec.statuses[1].code)
	assert.Nil(t, rec.statuses[1].extra)
	assert.Nil(t, rec.statuses[1].page)
	assert.Equal(t, []types.SysstatEvent{{CPUUsage: 12.5, Time: 1000}}, rec.samples)
	assert.Equal(t, []types.NotifyEvent{{InfoCode: types.InfoSnapshotDone}}, rec.notes)
}

func TestTokenIsSentAsQueryParameter(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case got <- r.URL.Query().Get("x-auth"):
		default:
		}
		assert.Equal(t, Path, r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	startStream(t, srv, &recorder{}, "secret")

	select {
	case v := <-got:
		assert.Equal(t, "Bearer secret", v)
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}
}

func TestReconnectReportsDisconnectOnceAndResumes(t *testing.T) {
	var attempts atomic.Int32
	lastEventID := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch attempts.Add(1) {
		case 1:
			writeEvent(w, "id: 7\nevent: statuschanged\ndata: {\"eventCode\":8,\"pageCode\":3}\n\n")
			// Returning ends the response, which the client sees as a drop.
		case 2, 3:
			w.WriteHeader(http.StatusBadGateway)
		default:
			select {
			case lastEventID <- r.Header.Get("Last-Event-ID"):
			default:
			}
			writeEvent(w, "event: statuschanged\ndata: {\"eventCode\":7}\n\n")
			<-r.Context().Done()
		}
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	startStream(t, srv, rec, "")

	require.Eventually(t, func() bool { return len(rec.codes()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []types.EventCode{types.EventRunning, types.EventDisconnected, types.EventLoading}, rec.codes())
	assert.Equal(t, "7", <-lastEventID)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Nil(t, rec.statuses[1].page, "disconnect must not touch the page")
}

func TestRejectedStreamIsNotRetried(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		firstLive bool
		want      []types.EventCode
	}{
		{"unauthorized on first attempt", http.StatusUnauthorized, false, []types.EventCode{types.EventDisconnected}},
		{"forbidden on first attempt", http.StatusForbidden, false, []types.EventCode{types.EventDisconnected}},
		{"unauthorized after a drop", http.StatusUnauthorized, true, []types.EventCode{types.EventRunning, types.EventDisconnected}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) == 1 && tt.firstLive {
					writeEvent(w, "event: statuschanged\ndata: {\"eventCode\":8}\n\n")
					return
				}
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			rec := &recorder{}
			conn := startStream(t, srv, rec, "stale")

			select {
			case <-conn.Done():
			case <-time.After(time.Second):
				t.Fatal("connection kept retrying")
			}
			assert.ErrorIs(t, conn.Err(), ErrRejected)
			assert.Equal(t, tt.want, rec.codes())

			seen := attempts.Load()
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, seen, attempts.Load(), "no request after rejection")
		})
	}
}

func TestErrIsNilAfterClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	conn := startStream(t, srv, &recorder{}, "")
	assert.NoError(t, conn.Err())
	conn.Close()
	assert.NoError(t, conn.Err())
}

func TestCloseStopsCallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				writeEvent(w, "event: sysstat\ndata: {\"cpuUsage\":1,\"time\":1}\n\n")
			}
		}
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	conn := startStream(t, srv, rec, "")

	require.Eventually(t, func() bool { return rec.total() > 3 }, time.Second, time.Millisecond)
	conn.Close()

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	n := rec.total()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.total())

	// Close is idempotent.
	conn.Close()
}

func TestContextCancelStopsConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	conn := New(srv.Client(), srv.URL, Options{Status: rec}).Connect(ctx)
	cancel()

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection did not stop")
	}
	assert.Empty(t, rec.codes(), "cancellation is not an outage")
}

package app

import (
	"sync"
	"time"

	"github.com/kofuk/premises-sub000/internal/i18n"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// Toast is a localized notification ready for display.
type Toast struct {
	Code    types.InfoCode
	Message string
	IsError bool
	At      time.Time
}

// Toasts queues notifications from the stream. When the queue is full the
// oldest toast is discarded.
type Toasts struct {
	catalog *i18n.Catalog
	now     func() time.Time

	mu sync.Mutex
	ch chan Toast
}

// NewToasts returns a queue holding up to size toasts (16 if size <= 0).
func NewToasts(catalog *i18n.Catalog, size int) *Toasts {
	if size <= 0 {
		size = 16
	}
	return &Toasts{catalog: catalog, now: time.Now, ch: make(chan Toast, size)}
}

// Notify implements stream.Notifier.
func (t *Toasts) Notify(ev types.NotifyEvent) {
	toast := Toast{
		Code:    ev.InfoCode,
		Message: t.catalog.Info(ev.InfoCode),
		IsError: ev.IsError,
		At:      t.now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		select {
		case t.ch <- toast:
			return
		default:
		}
		select {
		case <-t.ch:
		default:
		}
	}
}

// C delivers queued toasts.
func (t *Toasts) C() <-chan Toast {
	return t.ch
}

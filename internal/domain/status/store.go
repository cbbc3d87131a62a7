package status

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/i18n"
	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// ErrUnknownPage is returned when the server selects a page this client
// cannot show.
var ErrUnknownPage = errors.New("unknown page")

// Page is a top-level screen.
type Page string

const (
	PageLaunch      Page = "launch"
	PageLoading     Page = "loading"
	PageRunning     Page = "running"
	PageManualSetup Page = "manual-setup"
)

var pages = map[types.PageCode]Page{
	types.PageLaunch:      PageLaunch,
	types.PageLoading:     PageLoading,
	types.PageRunning:     PageRunning,
	types.PageManualSetup: PageManualSetup,
}

// ResolvePage maps a page code to its screen.
func ResolvePage(code types.PageCode) (Page, error) {
	p, ok := pages[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownPage, code)
	}
	return p, nil
}

// Snapshot is a consistent copy of the store's status fields.
type Snapshot struct {
	Code     types.EventCode
	Extra    types.StatusExtra
	PageCode types.PageCode
}

// Store holds the latest server-pushed status and the CPU series. It
// implements the stream's StatusSink and CPUSink.
type Store struct {
	catalog *i18n.Catalog
	metrics *monitoring.Metrics
	log     *logging.Logger
	series  *Series

	mu     sync.RWMutex
	code   types.EventCode
	extra  types.StatusExtra
	page   types.PageCode
	nextID int
	subs   map[int]chan Snapshot
}

// NewStore returns a store showing the launch page with status 0 until the
// first event arrives.
func NewStore(catalog *i18n.Catalog, cpuCapacity int, log *logging.Logger, metrics *monitoring.Metrics) *Store {
	return &Store{
		catalog: catalog,
		metrics: metrics,
		log:     logging.OrNop(log).Named("status"),
		series:  NewSeries(cpuCapacity),
		page:    types.PageLaunch,
		subs:    make(map[int]chan Snapshot),
	}
}

// UpdateStatus replaces the status. A nil extra resets it to its zero
// value; a nil page leaves the current page unchanged.
func (s *Store) UpdateStatus(code types.EventCode, extra *types.StatusExtra, page *types.PageCode) {
	s.mu.Lock()
	s.code = code
	s.extra = types.StatusExtra{}
	if extra != nil {
		s.extra = *extra
	}
	if page != nil {
		s.page = *page
	}
	snap := s.snapshotLocked()
	s.publishLocked(snap)
	s.mu.Unlock()

	s.metrics.SetStatus(int(snap.Code), int(snap.PageCode))
	s.log.Debug("status updated",
		logging.Status(int(snap.Code), int(snap.PageCode)),
		zap.Int("progress", snap.Extra.Progress))
}

// UpdateCPUUsage appends a sample to the CPU series.
func (s *Store) UpdateCPUUsage(sample types.SysstatEvent) {
	s.series.Append(sample)
	s.metrics.SetCPUUsage(sample.CPUUsage)
}

// Snapshot returns the current status.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Page resolves the current page code.
func (s *Store) Page() (Page, error) {
	s.mu.RLock()
	code := s.page
	s.mu.RUnlock()
	return ResolvePage(code)
}

// Message returns the localized message for the current status code.
func (s *Store) Message() string {
	s.mu.RLock()
	code := s.code
	s.mu.RUnlock()
	return s.catalog.Status(code)
}

// Series returns the CPU series.
func (s *Store) Series() *Series {
	return s.series
}

// Subscribe returns a channel that receives the latest snapshot after each
// status change. Slow readers only see the most recent snapshot. The
// returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Code: s.code, Extra: s.extra, PageCode: s.page}
}

func (s *Store) publishLocked(snap Snapshot) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

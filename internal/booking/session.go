package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/changefeed"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

// Selection is the slot the customer picked.
type Selection struct {
	Day  string
	Time string
}

// Details are the customer-entered booking fields.
type Details struct {
	Name    string
	Contact string
	Service string
}

// Input is a complete reservation attempt.
type Input struct {
	StoreID      string
	Day          string
	Time         string
	Professional string
	Service      string
	Name         string
	Contact      string
}

// Validate checks the booking preconditions in order and reports the first
// one that fails.
func (in Input) Validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return &ValidationError{Field: FieldName}
	case strings.TrimSpace(in.Contact) == "":
		return &ValidationError{Field: FieldContact}
	case strings.TrimSpace(in.Professional) == "":
		return &ValidationError{Field: FieldProfessional}
	case strings.TrimSpace(in.Service) == "":
		return &ValidationError{Field: FieldService}
	case strings.TrimSpace(in.Day) == "" || strings.TrimSpace(in.Time) == "":
		return &ValidationError{Field: FieldSlot}
	}
	return nil
}

func (in Input) request() reservations.Request {
	return reservations.Request{
		StoreID:      strings.TrimSpace(in.StoreID),
		Date:         strings.TrimSpace(in.Day),
		Time:         strings.TrimSpace(in.Time),
		Name:         strings.TrimSpace(in.Name),
		Contact:      strings.TrimSpace(in.Contact),
		Professional: strings.TrimSpace(in.Professional),
		Service:      strings.TrimSpace(in.Service),
	}
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Stores       []stores.Store
	StoreID      string
	Roster       stores.Roster
	Professional string
	Window       availability.Window
	Slots        map[string][]string
	Selection    *Selection
	Loading      bool
	Generation   uint64
}

// HasStore reports whether a store is selected.
func (s Snapshot) HasStore() bool { return s.StoreID != "" }

// Store returns the selected store profile.
func (s Snapshot) Store() (stores.Store, bool) {
	return stores.Find(s.Stores, s.StoreID)
}

const (
	feedRetryInitial = 500 * time.Millisecond
	feedRetryMax     = 30 * time.Second
)

type listener struct {
	identity Identity
	feed     Feed
	cancel   context.CancelFunc
	done     chan struct{}
}

// alive reports whether the listener goroutine is still reading its feed.
func (l *listener) alive() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Session is one viewer's booking flow. All methods are safe for concurrent
// use; the change feed listener runs on its own goroutine.
type Session struct {
	backend Backend
	logger  *logging.Logger
	now     func() time.Time
	onApply func(Snapshot)

	mu           sync.Mutex
	stores       []stores.Store
	storeID      string
	professional string
	anchor       *time.Time
	window       availability.Window
	slots        map[string][]string
	selection    *Selection
	loading      bool
	generation   uint64
	applied      uint64
	epoch        uint64
	live         bool
	liveCtx      context.Context
	closed       bool

	// feedMu serializes subscription changes so the old feed is always
	// released before its replacement is acquired.
	feedMu    sync.Mutex
	listener  *listener
	feedRetry time.Duration
	stopped   chan struct{}
}

func NewSession(backend Backend, logger *logging.Logger) *Session {
	if backend == nil {
		panic("booking: backend required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Session{
		backend: backend,
		logger:  logger,
		now:       time.Now,
		slots:     map[string][]string{},
		feedRetry: feedRetryInitial,
		stopped:   make(chan struct{}),
	}
	s.window = availability.ComputeWindow(nil, s.now())
	return s
}

// WithClock sets the clock the window is computed from.
func (s *Session) WithClock(now func() time.Time) *Session {
	if now != nil {
		s.mu.Lock()
		s.now = now
		s.window = availability.ComputeWindow(s.anchor, now())
		s.mu.Unlock()
	}
	return s
}

// OnUpdate registers a callback run after every applied refresh. It may run
// on the feed goroutine, so it must not change the store, professional or
// window.
func (s *Session) OnUpdate(fn func(Snapshot)) *Session {
	s.mu.Lock()
	s.onApply = fn
	s.mu.Unlock()
	return s
}

// LoadStores fetches the directory. On failure the cached list is kept and
// ErrDirectoryUnavailable is returned. When no store is selected yet the
// first store is selected and its availability loaded.
func (s *Session) LoadStores(ctx context.Context) error {
	list, err := s.backend.ListStores(ctx)
	if err != nil {
		s.logger.Warn("store directory unavailable", "error", err)
		return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	list = append([]stores.Store(nil), list...)
	stores.SortStores(list)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.stores = list
	pick := ""
	if s.storeID == "" && len(list) > 0 {
		pick = list[0].ID
	}
	s.mu.Unlock()

	s.logger.Debug("store directory loaded", "count", len(list))
	if pick == "" {
		return nil
	}
	return s.SelectStore(ctx, pick)
}

// SelectStore switches to storeID. The professional filter and the selection
// are reset.
func (s *Session) SelectStore(ctx context.Context, storeID string) error {
	storeID = strings.TrimSpace(storeID)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := stores.Find(s.stores, storeID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("booking: select store %q: %w", storeID, stores.ErrStoreNotFound)
	}
	if storeID == s.storeID {
		s.mu.Unlock()
		return nil
	}
	s.storeID = storeID
	s.professional = ""
	s.resetLocked()
	s.mu.Unlock()
	return s.identityChanged(ctx)
}

// SetProfessional changes the professional filter. An empty name shows the
// store's combined availability.
func (s *Session) SetProfessional(ctx context.Context, professional string) error {
	professional = strings.TrimSpace(professional)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if professional == s.professional {
		s.mu.Unlock()
		return nil
	}
	s.professional = professional
	s.resetLocked()
	s.mu.Unlock()
	return s.identityChanged(ctx)
}

// SetAnchor moves the window to start at anchor, or at today when nil.
func (s *Session) SetAnchor(ctx context.Context, anchor *time.Time) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	window := availability.ComputeWindow(anchor, s.now())
	if anchor != nil {
		a := *anchor
		s.anchor = &a
	} else {
		s.anchor = nil
	}
	if window == s.window {
		s.mu.Unlock()
		return nil
	}
	s.window = window
	s.resetLocked()
	s.mu.Unlock()
	return s.identityChanged(ctx)
}

// resetLocked drops state tied to the previous identity.
func (s *Session) resetLocked() {
	s.selection = nil
	s.slots = map[string][]string{}
	s.epoch++
}

func (s *Session) identityChanged(ctx context.Context) error {
	if err := s.resubscribe(); err != nil {
		s.logger.Warn("change feed subscribe failed", "error", err)
	}
	return s.RefreshAll(ctx)
}

// RefreshAll queries all six days of the window concurrently and replaces the
// slot map in one step. A failing day becomes empty and is only logged. A
// result that a newer refresh or an identity change has overtaken is dropped.
func (s *Session) RefreshAll(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.storeID == "" {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen, epoch := s.generation, s.epoch
	storeID, professional, window := s.storeID, s.professional, s.window
	s.loading = true
	s.mu.Unlock()

	results := make([][]string, len(window))
	var g errgroup.Group
	for i, day := range window {
		g.Go(func() error {
			slots, err := s.backend.QuerySlots(ctx, storeID, day, professional)
			if err != nil {
				s.logger.Warn("slot query failed",
					"store_id", storeID,
					"day", day,
					"error", &SlotQueryError{Day: day, Err: err},
				)
				slots = nil
			}
			if slots == nil {
				slots = []string{}
			}
			results[i] = slots
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	if gen == s.generation {
		s.loading = false
	}
	if ctx.Err() != nil {
		s.mu.Unlock()
		return ctx.Err()
	}
	if epoch != s.epoch || gen < s.applied {
		s.mu.Unlock()
		s.logger.Debug("stale availability discarded", "generation", gen)
		return nil
	}
	next := make(map[string][]string, len(window))
	for i, day := range window {
		next[day] = results[i]
	}
	s.slots = next
	s.applied = gen
	snap := s.snapshotLocked()
	onApply := s.onApply
	s.mu.Unlock()

	if onApply != nil {
		onApply(snap)
	}
	return nil
}

// Select picks a slot. Only a time currently open in the slot map is accepted.
func (s *Session) Select(day, clock string) error {
	day, clock = strings.TrimSpace(day), strings.TrimSpace(clock)
	if normalized, err := stores.NormalizeClock(clock); err == nil {
		clock = normalized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, open := range s.slots[day] {
		if open == clock {
			s.selection = &Selection{Day: day, Time: clock}
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s", ErrSlotUnavailable, day, clock)
}

// Clear drops the selection.
func (s *Session) Clear() {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
}

// Commit reserves the selected slot for the customer. Preconditions are
// checked locally first and no call is made when one fails. On success the
// selection is cleared; on a lost race ErrSlotConflict is returned and the
// selection kept. Both refresh availability. Attempts are never retried.
func (s *Session) Commit(ctx context.Context, details Details) (*reservations.Reservation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	in := Input{
		StoreID:      s.storeID,
		Professional: s.professional,
		Service:      details.Service,
		Name:         details.Name,
		Contact:      details.Contact,
	}
	if s.selection != nil {
		in.Day, in.Time = s.selection.Day, s.selection.Time
	}
	s.mu.Unlock()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.StoreID == "" {
		return nil, ErrNoStore
	}

	res, err := s.backend.Reserve(ctx, in.request())
	switch {
	case err == nil:
		s.mu.Lock()
		if s.selection != nil && s.selection.Day == in.Day && s.selection.Time == in.Time {
			s.selection = nil
		}
		s.mu.Unlock()
		s.logger.Info("reservation committed",
			"store_id", in.StoreID,
			"day", in.Day,
			"time", in.Time,
			"professional", in.Professional,
		)
		s.refreshAfterCommit(ctx)
		return res, nil
	case isConflict(err):
		s.logger.Info("reservation lost slot race",
			"store_id", in.StoreID,
			"day", in.Day,
			"time", in.Time,
			"professional", in.Professional,
		)
		s.refreshAfterCommit(ctx)
		return nil, fmt.Errorf("%w: %s %s", ErrSlotConflict, in.Day, in.Time)
	default:
		s.logger.Error("reservation failed", "error", err, "store_id", in.StoreID)
		return nil, &ReservationError{Message: err.Error(), Err: err}
	}
}

func (s *Session) refreshAfterCommit(ctx context.Context) {
	if err := s.RefreshAll(ctx); err != nil {
		s.logger.Debug("refresh after commit skipped", "error", err)
	}
}

// Live turns on change feed following. Every event triggers RefreshAll for
// the identity current at that time. ctx bounds the whole feed lifetime.
func (s *Session) Live(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.live = true
	s.liveCtx = ctx
	s.mu.Unlock()
	return s.resubscribe()
}

// resubscribe releases the current feed and subscribes for the current
// identity when live following is on.
func (s *Session) resubscribe() error {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	s.mu.Lock()
	live, base, closed := s.live, s.liveCtx, s.closed
	id := Identity{StoreID: s.storeID, Professional: s.professional, Window: s.window}
	s.mu.Unlock()

	if s.listener != nil && s.listener.alive() && s.listener.identity == id && live && !closed {
		return nil
	}
	s.releaseLocked()
	if !live || closed || id.StoreID == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(base)
	feed, err := s.backend.Subscribe(ctx, id)
	if err != nil {
		cancel()
		return fmt.Errorf("booking: subscribe: %w", err)
	}
	l := &listener{identity: id, feed: feed, cancel: cancel, done: make(chan struct{})}
	s.listener = l
	go s.listen(ctx, l)
	s.logger.Debug("change feed subscribed", "store_id", id.StoreID, "professional", id.Professional, "from", id.Window.Start())
	return nil
}

// releaseLocked stops the listener and waits for it. Callers hold feedMu.
func (s *Session) releaseLocked() {
	l := s.listener
	if l == nil {
		return
	}
	s.listener = nil
	l.cancel()
	if err := l.feed.Close(); err != nil {
		s.logger.Debug("change feed close failed", "error", err)
	}
	<-l.done
}

// listen refreshes on every event. When the feed ends on its own (socket
// drop, broker shutdown) the subscription is acquired again with backoff.
func (s *Session) listen(ctx context.Context, l *listener) {
	dropped := s.follow(ctx, l.feed.Events())
	close(l.done)
	if dropped {
		s.logger.Warn("change feed dropped", "store_id", l.identity.StoreID, "professional", l.identity.Professional)
		s.reacquire()
	}
}

// follow reports true when the feed closed while the listener was still wanted.
func (s *Session) follow(ctx context.Context, events <-chan changefeed.Event) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return ctx.Err() == nil
			}
			s.logger.Debug("reservation change received", "store_id", evt.StoreID, "day", evt.Day)
			if err := s.RefreshAll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("refresh after change failed", "error", err)
			}
		}
	}
}

// reacquire subscribes again for the current identity until it succeeds, the
// session stops following, or the live context ends. Events missed while the
// feed was down are covered by a refresh once it is back.
func (s *Session) reacquire() {
	s.mu.Lock()
	base := s.liveCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	delay := s.feedRetry
	for {
		select {
		case <-base.Done():
			return
		case <-s.stopped:
			return
		case <-time.After(delay):
		}
		if err := s.resubscribe(); err != nil {
			s.logger.Warn("change feed resubscribe failed", "error", err, "retry_in", delay)
			delay = min(delay*2, feedRetryMax)
			continue
		}
		if err := s.RefreshAll(base); err != nil && base.Err() == nil && !errors.Is(err, ErrClosed) {
			s.logger.Warn("refresh after resubscribe failed", "error", err)
		}
		return
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Stores:       append([]stores.Store(nil), s.stores...),
		StoreID:      s.storeID,
		Professional: s.professional,
		Window:       s.window,
		Slots:        make(map[string][]string, len(s.slots)),
		Loading:      s.loading,
		Generation:   s.applied,
	}
	if store, ok := stores.Find(s.stores, s.storeID); ok {
		snap.Roster = store.Roster()
	}
	for day, slots := range s.slots {
		snap.Slots[day] = append([]string(nil), slots...)
	}
	if s.selection != nil {
		sel := *s.selection
		snap.Selection = &sel
	}
	return snap
}

// Close releases the change feed. The session cannot be used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopped)
	s.mu.Unlock()

	s.feedMu.Lock()
	s.releaseLocked()
	s.feedMu.Unlock()
	return nil
}

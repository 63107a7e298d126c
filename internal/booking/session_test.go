package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/changefeed"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

var testNow = time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testStore() stores.Store {
	return stores.Store{
		ID:            "S1",
		Name:          "Centro",
		OpeningTime:   "09:00",
		ClosingTime:   "10:00",
		Professionals: "Ana; Bea",
		Services:      "Corte, Barba",
	}
}

type localStack struct {
	backend *LocalBackend
	hub     *changefeed.Hub
}

func newLocalStack(t *testing.T) localStack {
	t.Helper()
	logger := logging.New("error")
	repo := stores.NewInMemoryRepository(testStore())
	ledger := reservations.NewInMemoryLedger()
	hub := changefeed.NewHub(logger)
	t.Cleanup(func() { _ = hub.Close() })

	slots := availability.NewService(repo, ledger, logger).WithClock(fixedClock)
	booker := reservations.NewService(repo, ledger, logger).WithClock(fixedClock).WithPublisher(hub)
	return localStack{backend: NewLocalBackend(repo, slots, booker, hub), hub: hub}
}

func newTestSession(t *testing.T, backend Backend) *Session {
	t.Helper()
	s := NewSession(backend, logging.New("error")).WithClock(fixedClock)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakeFeed struct {
	backend *fakeBackend
	id      Identity
	events  chan changefeed.Event
	once    sync.Once
}

func (f *fakeFeed) Events() <-chan changefeed.Event { return f.events }

func (f *fakeFeed) Close() error {
	f.once.Do(func() {
		f.backend.record("close:" + f.id.StoreID + ":" + f.id.Professional)
	})
	return nil
}

type fakeBackend struct {
	mu         sync.Mutex
	stores     []stores.Store
	listErr    error
	slots      func(ctx context.Context, storeID, day, professional string) ([]string, error)
	reserveErr error
	reserves   int
	queries    int
	log        []string
	feeds      []*fakeFeed
}

func newFakeBackend(list ...stores.Store) *fakeBackend {
	return &fakeBackend{
		stores: list,
		slots: func(context.Context, string, string, string) ([]string, error) {
			return []string{"09:00", "09:30"}, nil
		},
	}
}

func (b *fakeBackend) record(entry string) {
	b.mu.Lock()
	b.log = append(b.log, entry)
	b.mu.Unlock()
}

func (b *fakeBackend) ListStores(context.Context) ([]stores.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]stores.Store(nil), b.stores...), nil
}

func (b *fakeBackend) QuerySlots(ctx context.Context, storeID, day, professional string) ([]string, error) {
	b.mu.Lock()
	b.queries++
	fn := b.slots
	b.mu.Unlock()
	return fn(ctx, storeID, day, professional)
}

func (b *fakeBackend) Reserve(_ context.Context, req reservations.Request) (*reservations.Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserves++
	if b.reserveErr != nil {
		return nil, b.reserveErr
	}
	return &reservations.Reservation{
		StoreID:      req.StoreID,
		Day:          req.Date,
		Time:         req.Time,
		Professional: req.Professional,
		Service:      req.Service,
		Name:         req.Name,
		Contact:      req.Contact,
	}, nil
}

func (b *fakeBackend) Subscribe(_ context.Context, id Identity) (Feed, error) {
	feed := &fakeFeed{backend: b, id: id, events: make(chan changefeed.Event, 1)}
	b.mu.Lock()
	b.feeds = append(b.feeds, feed)
	b.log = append(b.log, "subscribe:"+id.StoreID+":"+id.Professional)
	b.mu.Unlock()
	return feed, nil
}

func (b *fakeBackend) queryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries
}

func TestSessionEndToEndBooking(t *testing.T) {
	stack := newLocalStack(t)
	s := newTestSession(t, stack.backend)
	ctx := context.Background()

	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.SetProfessional(ctx, "Ana"))

	snap := s.Snapshot()
	require.Equal(t, "S1", snap.StoreID)
	assert.Equal(t, stores.Names{"Ana", "Bea"}, snap.Roster.Professionals)
	assert.Equal(t, []string{"09:00", "09:30"}, snap.Slots["2024-05-01"])
	assert.False(t, snap.Loading)

	require.NoError(t, s.Select("2024-05-01", "09:00"))
	res, err := s.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", res.Day)
	assert.Equal(t, "09:00", res.Time)
	assert.Equal(t, "Ana", res.Professional)

	snap = s.Snapshot()
	assert.Nil(t, snap.Selection)
	assert.Equal(t, []string{"09:30"}, snap.Slots["2024-05-01"])
}

func TestSessionConcurrentCommitsOneWins(t *testing.T) {
	stack := newLocalStack(t)
	ctx := context.Background()

	sessions := []*Session{newTestSession(t, stack.backend), newTestSession(t, stack.backend)}
	for _, s := range sessions {
		require.NoError(t, s.LoadStores(ctx))
		require.NoError(t, s.SetProfessional(ctx, "Ana"))
		require.NoError(t, s.Select("2024-05-01", "09:00"))
	}

	errs := make([]error, len(sessions))
	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Commit(ctx, Details{Name: fmt.Sprintf("Cliente %d", i), Contact: "11 99999-0000", Service: "Corte"})
		}()
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
			assert.NotNil(t, sessions[i].Snapshot().Selection, "loser keeps its selection")
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
	for _, s := range sessions {
		assert.Equal(t, []string{"09:30"}, s.Snapshot().Slots["2024-05-01"])
	}
}

func TestRefreshAllDegradesFailingDay(t *testing.T) {
	backend := newFakeBackend(testStore())
	window := availability.ComputeWindow(nil, testNow)
	backend.slots = func(_ context.Context, _, day, _ string) ([]string, error) {
		if day == window[2] {
			return nil, errors.New("gateway timeout")
		}
		return []string{"10:00"}, nil
	}
	s := newTestSession(t, backend)

	require.NoError(t, s.LoadStores(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap.Slots, 6)
	for _, day := range window {
		if day == window[2] {
			assert.Empty(t, snap.Slots[day])
			continue
		}
		assert.Equal(t, []string{"10:00"}, snap.Slots[day])
	}
	assert.False(t, snap.Loading)
}

func TestRefreshAllIsIdempotent(t *testing.T) {
	backend := newFakeBackend(testStore())
	s := newTestSession(t, backend)
	ctx := context.Background()

	require.NoError(t, s.LoadStores(ctx))
	first := s.Snapshot().Slots
	require.NoError(t, s.RefreshAll(ctx))
	assert.Equal(t, first, s.Snapshot().Slots)
}

func TestRefreshAllDiscardsStaleGeneration(t *testing.T) {
	backend := newFakeBackend(testStore())
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))

	gate := make(chan struct{})
	started := make(chan struct{}, 6)
	backend.mu.Lock()
	backend.slots = func(context.Context, string, string, string) ([]string, error) {
		started <- struct{}{}
		<-gate
		return []string{"09:00"}, nil
	}
	backend.mu.Unlock()

	slow := make(chan error, 1)
	go func() { slow <- s.RefreshAll(ctx) }()
	for i := 0; i < 6; i++ {
		<-started
	}

	backend.mu.Lock()
	backend.slots = func(context.Context, string, string, string) ([]string, error) {
		return []string{"11:00"}, nil
	}
	backend.mu.Unlock()
	require.NoError(t, s.RefreshAll(ctx))

	close(gate)
	require.NoError(t, <-slow)

	snap := s.Snapshot()
	for _, day := range snap.Window {
		assert.Equal(t, []string{"11:00"}, snap.Slots[day])
	}
	assert.False(t, snap.Loading)
}

func TestInputValidateOrder(t *testing.T) {
	full := Input{StoreID: "S1", Day: "2024-05-01", Time: "09:00", Professional: "Ana", Service: "Corte", Name: "Maria", Contact: "maria@x.com"}
	tests := []struct {
		name  string
		edit  func(*Input)
		field string
	}{
		{"only contact filled", func(in *Input) { *in = Input{Contact: "maria@x.com"} }, FieldName},
		{"blank name", func(in *Input) { in.Name = "   " }, FieldName},
		{"missing contact", func(in *Input) { in.Contact = "" }, FieldContact},
		{"missing professional and service", func(in *Input) { in.Professional, in.Service = "", "" }, FieldProfessional},
		{"missing service and slot", func(in *Input) { in.Service, in.Time = "", "" }, FieldService},
		{"missing slot", func(in *Input) { in.Day = "" }, FieldSlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := full
			tt.edit(&in)
			err := in.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.NoError(t, full.Validate())
}

func TestCommitValidationMakesNoCall(t *testing.T) {
	backend := newFakeBackend(testStore())
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))

	_, err := s.Commit(ctx, Details{Contact: "maria@x.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldName, verr.Field)

	_, err = s.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldProfessional, verr.Field)

	require.NoError(t, s.SetProfessional(ctx, "Ana"))
	_, err = s.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldSlot, verr.Field)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Zero(t, backend.reserves)
}

func TestCommitWithoutStore(t *testing.T) {
	s := newTestSession(t, newFakeBackend())
	require.NoError(t, s.LoadStores(context.Background()))
	assert.False(t, s.Snapshot().HasStore())

	var verr *ValidationError
	_, err := s.Commit(context.Background(), Details{Contact: "maria@x.com"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldName, verr.Field)

	_, err = s.Commit(context.Background(), Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldProfessional, verr.Field)
	assert.NotErrorIs(t, err, ErrNoStore)
}

func TestCommitConflictKeepsSelectionAndRefreshes(t *testing.T) {
	backend := newFakeBackend(testStore())
	backend.reserveErr = errors.New("duplicate key value violates unique constraint")
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.SetProfessional(ctx, "Ana"))
	require.NoError(t, s.Select("2024-05-01", "09:00"))
	before := backend.queryCount()

	_, err := s.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	require.ErrorIs(t, err, ErrSlotConflict)
	assert.Equal(t, Notice(ErrSlotConflict), Notice(err))

	snap := s.Snapshot()
	require.NotNil(t, snap.Selection)
	assert.Equal(t, Selection{Day: "2024-05-01", Time: "09:00"}, *snap.Selection)
	assert.Equal(t, before+6, backend.queryCount())
}

func TestCommitFailureCarriesBackendMessage(t *testing.T) {
	backend := newFakeBackend(testStore())
	backend.reserveErr = errors.New("reservation could not be saved, please try again")
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.SetProfessional(ctx, "Ana"))
	require.NoError(t, s.Select("2024-05-01", "09:00"))
	before := backend.queryCount()

	_, err := s.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	var rerr *ReservationError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrReservationFailed)
	assert.Equal(t, "reservation could not be saved, please try again", err.Error())
	assert.Equal(t, err.Error(), Notice(err))
	assert.Equal(t, before, backend.queryCount(), "no refresh on generic failure")
	assert.NotNil(t, s.Snapshot().Selection)
}

func TestCommitDetectsTypedConflict(t *testing.T) {
	backend := newFakeBackend(testStore())
	backend.reserveErr = fmt.Errorf("book: %w", reservations.ErrSlotTaken)
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.SetProfessional(ctx, "Bea"))
	require.NoError(t, s.Select("2024-05-02", "09:30"))

	_, err := s.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Barba"})
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed", fmt.Errorf("book: %w", reservations.ErrSlotTaken), true},
		{"duplicate message", errors.New("Duplicate key value violates unique constraint"), true},
		{"unique only", errors.New("could not allocate unique reservation id"), false},
		{"generic", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConflict(tt.err))
		})
	}
}

func TestCommitUniqueWordingIsGenericFailure(t *testing.T) {
	backend := newFakeBackend(testStore())
	backend.reserveErr = errors.New("could not allocate unique reservation id")
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.SetProfessional(ctx, "Ana"))
	require.NoError(t, s.Select("2024-05-01", "09:00"))

	_, err := s.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	var rerr *ReservationError
	require.ErrorAs(t, err, &rerr)
	assert.NotErrorIs(t, err, ErrSlotConflict)
}

func TestSelectRequiresOpenSlot(t *testing.T) {
	s := newTestSession(t, newFakeBackend(testStore()))
	require.NoError(t, s.LoadStores(context.Background()))

	assert.ErrorIs(t, s.Select("2024-05-01", "12:00"), ErrSlotUnavailable)
	assert.ErrorIs(t, s.Select("2024-06-01", "09:00"), ErrSlotUnavailable)
	require.NoError(t, s.Select("2024-05-01", "09:30:00"))
	assert.Equal(t, "09:30", s.Snapshot().Selection.Time)

	s.Clear()
	assert.Nil(t, s.Snapshot().Selection)
}

func TestProfessionalChangeClearsSelection(t *testing.T) {
	s := newTestSession(t, newFakeBackend(testStore()))
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.SetProfessional(ctx, "Ana"))
	require.NoError(t, s.Select("2024-05-01", "09:00"))

	require.NoError(t, s.SetProfessional(ctx, "Ana"))
	require.NotNil(t, s.Snapshot().Selection, "same filter keeps the selection")

	require.NoError(t, s.SetProfessional(ctx, "Bea"))
	snap := s.Snapshot()
	assert.Nil(t, snap.Selection)
	assert.Contains(t, snap.Slots["2024-05-01"], "09:00", "time is still free for the new filter")
}

func TestAnchorChangeMovesWindow(t *testing.T) {
	s := newTestSession(t, newFakeBackend(testStore()))
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.Select("2024-05-01", "09:00"))

	sameDay := time.Date(2024, 4, 30, 23, 59, 0, 0, time.UTC)
	require.NoError(t, s.SetAnchor(ctx, &sameDay))
	require.NotNil(t, s.Snapshot().Selection, "same window keeps the selection")

	anchor := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetAnchor(ctx, &anchor))
	snap := s.Snapshot()
	assert.Nil(t, snap.Selection)
	assert.Equal(t, "2024-05-30", snap.Window[0])
	assert.Equal(t, "2024-06-04", snap.Window[5])
	assert.Len(t, snap.Slots, 6)
}

func TestLoadStoresSelectsFirstInDirectoryOrder(t *testing.T) {
	backend := newFakeBackend(
		stores.Store{ID: "a", Name: "Zona Sul"},
		stores.Store{ID: "c", Name: "centro"},
		stores.Store{ID: "b", Name: "Centro"},
	)
	s := newTestSession(t, backend)
	require.NoError(t, s.LoadStores(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, "b", snap.StoreID)
	require.Len(t, snap.Stores, 3)
	assert.Equal(t, "a", snap.Stores[2].ID)
}

func TestLoadStoresFailureKeepsCache(t *testing.T) {
	backend := newFakeBackend(testStore())
	backend.listErr = errors.New("connection refused")
	s := newTestSession(t, backend)
	ctx := context.Background()

	err := s.LoadStores(ctx)
	require.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.False(t, s.Snapshot().HasStore())

	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()
	require.NoError(t, s.LoadStores(ctx))

	backend.mu.Lock()
	backend.listErr = errors.New("connection refused")
	backend.mu.Unlock()
	require.ErrorIs(t, s.LoadStores(ctx), ErrDirectoryUnavailable)

	snap := s.Snapshot()
	assert.Len(t, snap.Stores, 1)
	store, ok := snap.Store()
	require.True(t, ok)
	assert.Equal(t, "Centro", store.Name)
}

func TestSelectStoreUnknown(t *testing.T) {
	s := newTestSession(t, newFakeBackend(testStore()))
	require.NoError(t, s.LoadStores(context.Background()))
	assert.ErrorIs(t, s.SelectStore(context.Background(), "nope"), stores.ErrStoreNotFound)
}

func TestLiveReleasesOldFeedBeforeSubscribing(t *testing.T) {
	backend := newFakeBackend(testStore())
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.Live(ctx))
	require.NoError(t, s.Live(ctx))
	require.NoError(t, s.SetProfessional(ctx, "Bea"))
	require.NoError(t, s.Close())

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{
		"subscribe:S1:",
		"close:S1:",
		"subscribe:S1:Bea",
		"close:S1:Bea",
	}, backend.log)
}

func (b *fakeBackend) feedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feeds)
}

func TestLiveResubscribesAfterFeedDrops(t *testing.T) {
	backend := newFakeBackend(testStore())
	s := newTestSession(t, backend)
	s.feedRetry = 10 * time.Millisecond
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.Live(ctx))
	require.Equal(t, 1, backend.feedCount())

	updates := make(chan Snapshot, 4)
	s.OnUpdate(func(snap Snapshot) { updates <- snap })
	backend.mu.Lock()
	first := backend.feeds[0]
	backend.slots = func(context.Context, string, string, string) ([]string, error) {
		return []string{"09:30"}, nil
	}
	backend.mu.Unlock()

	close(first.events)
	require.Eventually(t, func() bool { return backend.feedCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	select {
	case snap := <-updates:
		assert.Equal(t, []string{"09:30"}, snap.Slots["2024-05-01"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected refresh after the feed came back")
	}

	require.NoError(t, s.Live(ctx))
	assert.Equal(t, 2, backend.feedCount())

	backend.mu.Lock()
	second := backend.feeds[1]
	backend.mu.Unlock()
	second.events <- changefeed.Event{Kind: changefeed.KindReservationChanged}
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the new feed to drive refreshes")
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{"subscribe:S1:", "close:S1:", "subscribe:S1:"}, backend.log)
}

func TestLiveAgainReplacesDroppedFeed(t *testing.T) {
	backend := newFakeBackend(testStore())
	s := newTestSession(t, backend)
	s.feedRetry = time.Hour
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))
	require.NoError(t, s.Live(ctx))

	backend.mu.Lock()
	first := backend.feeds[0]
	backend.mu.Unlock()
	close(first.events)

	require.Eventually(t, func() bool {
		return s.Live(ctx) == nil && backend.feedCount() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLiveEventTriggersRefresh(t *testing.T) {
	backend := newFakeBackend(testStore())
	s := newTestSession(t, backend)
	ctx := context.Background()
	require.NoError(t, s.LoadStores(ctx))

	updates := make(chan Snapshot, 4)
	s.OnUpdate(func(snap Snapshot) { updates <- snap })
	require.NoError(t, s.Live(ctx))

	backend.mu.Lock()
	feed := backend.feeds[len(backend.feeds)-1]
	backend.slots = func(context.Context, string, string, string) ([]string, error) {
		return []string{"09:30"}, nil
	}
	backend.mu.Unlock()

	feed.events <- changefeed.Event{Kind: changefeed.KindReservationChanged, StoreID: "S2"}
	select {
	case snap := <-updates:
		assert.Equal(t, []string{"09:30"}, snap.Slots["2024-05-01"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected refresh after change event")
	}
}

func TestLiveFollowsBookingsFromOtherSessions(t *testing.T) {
	stack := newLocalStack(t)
	ctx := context.Background()

	watcher := newTestSession(t, stack.backend)
	require.NoError(t, watcher.LoadStores(ctx))
	require.NoError(t, watcher.SetProfessional(ctx, "Ana"))
	require.NoError(t, watcher.Live(ctx))
	require.Eventually(t, func() bool { return stack.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	buyer := newTestSession(t, stack.backend)
	require.NoError(t, buyer.LoadStores(ctx))
	require.NoError(t, buyer.SetProfessional(ctx, "Ana"))
	require.NoError(t, buyer.Select("2024-05-01", "09:00"))
	_, err := buyer.Commit(ctx, Details{Name: "Maria", Contact: "maria@x.com", Service: "Corte"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		slots := watcher.Snapshot().Slots["2024-05-01"]
		return len(slots) == 1 && slots[0] == "09:30"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, watcher.Close())
	assert.Eventually(t, func() bool { return stack.hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestClosedSessionRejectsCalls(t *testing.T) {
	s := newTestSession(t, newFakeBackend(testStore()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.LoadStores(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.RefreshAll(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Live(context.Background()), ErrClosed)
}

func TestNotice(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{Field: FieldContact}, "Please fill in your name and contact."},
		{&ValidationError{Field: FieldProfessional}, "Please choose a professional."},
		{&ValidationError{Field: FieldService}, "Please choose a service."},
		{&ValidationError{Field: FieldSlot}, "Please choose a day and time."},
		{fmt.Errorf("%w: boom", ErrDirectoryUnavailable), "Could not load stores right now. Please try again."},
		{&ReservationError{Message: "loja fechada"}, "loja fechada"},
		{errors.New("boom"), "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Notice(tt.err))
	}
}

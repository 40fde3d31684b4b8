package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
	"github.com/dmitrijs2005/duomatch/internal/docstore/memory"
	"github.com/dmitrijs2005/duomatch/internal/logging"
	"github.com/dmitrijs2005/duomatch/internal/profile"
)

type fakeCreds struct {
	mu           sync.Mutex
	subs         []func(string)
	subscribed   chan struct{}
	unsubscribed bool
	current      string
	signOuts     int
	signOutErr   error
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{subscribed: make(chan struct{})}
}

func (f *fakeCreds) Subscribe(fn func(string)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	if len(f.subs) == 1 {
		close(f.subscribed)
	}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.mu.Unlock()
	}
}

func (f *fakeCreds) SignOutUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != userID {
		return nil
	}
	f.signOuts++
	f.current = ""
	return f.signOutErr
}

func (f *fakeCreds) currentUser() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// emit switches the signed-in user and notifies subscribers.
func (f *fakeCreds) emit(userID string) {
	f.mu.Lock()
	f.current = userID
	subs := append([]func(string){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(userID)
	}
}

func (f *fakeCreds) signOutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}

type fakePending struct {
	mu      sync.Mutex
	entries map[string]profile.NewUser
}

func (f *fakePending) PendingProfile(userID string) (profile.NewUser, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.entries[userID]
	return u, ok
}

func (f *fakePending) ForgetPending(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, userID)
}

// flakyStore fails every Get until healed. Gets for a gated id wait until
// the gate is closed.
type flakyStore struct {
	docstore.Store
	mu     sync.Mutex
	broken bool
	gates  map[string]chan struct{}
}

func (s *flakyStore) gate(id string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	if s.gates == nil {
		s.gates = map[string]chan struct{}{}
	}
	s.gates[id] = ch
	s.mu.Unlock()
	return func() { close(ch) }
}

func (s *flakyStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	broken := s.broken
	gate := s.gates[id]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if broken {
		return nil, errors.New("network down")
	}
	return s.Store.Get(ctx, collection, id)
}

type harness struct {
	creds   *fakeCreds
	pending *fakePending
	store   *flakyStore
	loader  *profile.Loader
	boot    *Bootstrapper
	cancel  context.CancelFunc
	errc    chan error
	stopped sync.Once
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		creds:   newFakeCreds(),
		pending: &fakePending{entries: map[string]profile.NewUser{}},
		store:   &flakyStore{Store: memory.New()},
	}
	h.loader = profile.NewLoader(h.store, logging.NopLogger{})
	h.boot = New(h.creds, h.pending, h.loader, logging.NopLogger{})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.errc = make(chan error, 1)
	go func() { h.errc <- h.boot.Run(ctx) }()

	select {
	case <-h.creds.subscribed:
	case <-time.After(time.Second):
		t.Fatal("bootstrapper did not subscribe")
	}
	t.Cleanup(h.stop)
}

func (h *harness) stop() {
	h.stopped.Do(func() {
		h.cancel()
		<-h.errc
	})
}

func (h *harness) seed(t *testing.T, userID string, p *profile.Profile) {
	t.Helper()
	require.NoError(t, h.loader.Save(context.Background(), userID, p))
}

func waitFor(t *testing.T, b *Bootstrapper, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(b.State()) }, time.Second, 5*time.Millisecond)
	return b.State()
}

func settled(s State) bool { return !s.Loading }

func TestBootstrapper_InitialState(t *testing.T) {
	h := newHarness(t)

	st := h.boot.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Session)
	assert.Nil(t, st.Profile)
	assert.Equal(t, PhaseLoading, st.Phase)
}

func TestBootstrapper_SignedOut(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.creds.emit("")

	st := waitFor(t, h.boot, settled)
	assert.Nil(t, st.Session)
	assert.Nil(t, st.Profile)
	assert.Equal(t, PhaseUnauthenticated, st.Phase)
}

func TestBootstrapper_KnownUser(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana", Email: "ana@example.com", Score: 3})
	h.start(t)

	h.creds.emit("u-1")

	st := waitFor(t, h.boot, settled)
	require.NotNil(t, st.Session)
	assert.Equal(t, "u-1", st.UserID())
	require.NotNil(t, st.Profile)
	assert.Equal(t, "ana", st.Profile.Nickname)
	assert.Equal(t, int64(3), st.Profile.Score)
	assert.Equal(t, PhaseAuthenticatedKnown, st.Phase)
	assert.Equal(t, 0, h.creds.signOutCount())
}

func TestBootstrapper_KnownUserWithPartner(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana", PartnerID: "u-2", CoupleID: "c-1"})
	h.seed(t, "u-2", &profile.Profile{Nickname: "bia", PartnerID: "u-1", CoupleID: "c-1"})
	h.start(t)

	h.creds.emit("u-1")

	st := waitFor(t, h.boot, settled)
	require.NotNil(t, st.Profile)
	require.NotNil(t, st.Profile.PartnerData)
	assert.Equal(t, "bia", st.Profile.PartnerData.Nickname)
}

func TestBootstrapper_NewUserCreatesProfile(t *testing.T) {
	h := newHarness(t)
	h.pending.entries["u-new"] = profile.NewUser{Nickname: "caio", Email: "caio@example.com"}
	h.start(t)

	h.creds.emit("u-new")

	st := waitFor(t, h.boot, settled)
	assert.Equal(t, PhaseAuthenticatedNew, st.Phase)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "caio", st.Profile.Nickname)
	assert.False(t, st.Profile.Paired())

	doc, err := h.store.Get(context.Background(), common.CollectionUsers, "u-new")
	require.NoError(t, err)
	assert.Equal(t, "caio", doc[profile.FieldNickname])
	assert.Nil(t, doc[profile.FieldPartnerID])
	assert.Nil(t, doc[profile.FieldCoupleID])

	_, ok := h.pending.PendingProfile("u-new")
	assert.False(t, ok, "pending payload must be consumed")
}

func TestBootstrapper_InconsistentSignsOut(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.creds.emit("ghost")

	st := waitFor(t, h.boot, settled)
	assert.Nil(t, st.Session)
	assert.Nil(t, st.Profile)
	assert.Equal(t, PhaseUnauthenticated, st.Phase)
	assert.Equal(t, 1, h.creds.signOutCount())

	_, err := h.store.Get(context.Background(), common.CollectionUsers, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound, "no profile must be created")
}

func TestBootstrapper_InconsistentSignOutFailureStillClears(t *testing.T) {
	h := newHarness(t)
	h.creds.signOutErr = errors.New("revoke failed")
	h.start(t)

	h.creds.emit("ghost")

	st := waitFor(t, h.boot, settled)
	assert.Nil(t, st.Session)
	assert.Equal(t, PhaseUnauthenticated, st.Phase)
	assert.Equal(t, 1, h.creds.signOutCount())
}

func TestBootstrapper_InconsistentLeavesNewerSessionAlone(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-b", &profile.Profile{Nickname: "bia"})
	release := h.store.gate("ghost")
	h.start(t)

	h.creds.emit("ghost")
	// ghost's profile fetch is in flight while another user signs in.
	h.creds.emit("u-b")
	release()

	st := waitFor(t, h.boot, func(s State) bool { return s.UserID() == "u-b" })
	assert.Equal(t, PhaseAuthenticatedKnown, st.Phase)
	assert.Equal(t, "u-b", h.creds.currentUser())
	assert.Equal(t, 0, h.creds.signOutCount())
}

func TestBootstrapper_FetchErrorKeepsLoading(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.store.broken = true
	h.start(t)

	h.creds.emit("u-1")

	// Let the task run; nothing may change.
	time.Sleep(50 * time.Millisecond)
	st := h.boot.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Session)
	assert.Equal(t, 0, h.creds.signOutCount())

	// A later notification still settles the state.
	h.creds.emit("")
	st = waitFor(t, h.boot, settled)
	assert.Equal(t, PhaseUnauthenticated, st.Phase)
}

func TestBootstrapper_FetchErrorKeepsPreviousSession(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.start(t)

	h.creds.emit("u-1")
	waitFor(t, h.boot, settled)

	h.store.mu.Lock()
	h.store.broken = true
	h.store.mu.Unlock()
	h.creds.emit("u-2")

	time.Sleep(50 * time.Millisecond)
	st := h.boot.State()
	assert.Equal(t, "u-1", st.UserID())
	assert.Equal(t, PhaseAuthenticatedKnown, st.Phase)
}

func TestBootstrapper_LoadingClearedOnce(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})

	var mu sync.Mutex
	var loadingSeen []bool
	cancel := h.boot.Watch(func(s State) {
		mu.Lock()
		loadingSeen = append(loadingSeen, s.Loading)
		mu.Unlock()
	})
	defer cancel()

	h.start(t)
	h.creds.emit("")
	h.creds.emit("u-1")
	h.creds.emit("")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(loadingSeen) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, false, false}, loadingSeen)
}

func TestBootstrapper_SerialProcessingLastWins(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.seed(t, "u-2", &profile.Profile{Nickname: "bia"})

	var mu sync.Mutex
	var users []string
	cancel := h.boot.Watch(func(s State) {
		mu.Lock()
		users = append(users, s.UserID())
		mu.Unlock()
	})
	defer cancel()

	h.start(t)
	h.creds.emit("u-1")
	h.creds.emit("")
	h.creds.emit("u-2")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(users) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"u-1", "", "u-2"}, users)
	mu.Unlock()

	st := h.boot.State()
	assert.Equal(t, "bia", st.Profile.Nickname)
}

func TestBootstrapper_Refresh(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.start(t)

	h.creds.emit("u-1")
	st := waitFor(t, h.boot, settled)
	require.False(t, st.Profile.Paired())

	// Linking happened behind the bootstrapper's back.
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana", PartnerID: "u-2", CoupleID: "c-1"})
	h.seed(t, "u-2", &profile.Profile{Nickname: "bia", PartnerID: "u-1", CoupleID: "c-1"})

	require.NoError(t, h.boot.Refresh(context.Background(), "u-1"))

	st = h.boot.State()
	assert.True(t, st.Profile.Paired())
	require.NotNil(t, st.Profile.PartnerData)
	assert.Equal(t, "bia", st.Profile.PartnerData.Nickname)
	assert.Equal(t, PhaseAuthenticatedKnown, st.Phase)
}

func TestBootstrapper_RefreshStaleIgnored(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.seed(t, "u-2", &profile.Profile{Nickname: "bia"})
	h.start(t)

	h.creds.emit("u-1")
	waitFor(t, h.boot, settled)

	require.NoError(t, h.boot.Refresh(context.Background(), "u-2"))

	st := h.boot.State()
	assert.Equal(t, "u-1", st.UserID())
	assert.Equal(t, "ana", st.Profile.Nickname)
}

func TestBootstrapper_RefreshSignedOutIgnored(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.start(t)

	h.creds.emit("")
	waitFor(t, h.boot, settled)

	require.NoError(t, h.boot.Refresh(context.Background(), "u-1"))
	st := h.boot.State()
	assert.Nil(t, st.Session)
	assert.Nil(t, st.Profile)
}

func TestBootstrapper_RefreshMissingDocumentKeepsState(t *testing.T) {
	h := newHarness(t)
	h.pending.entries["u-1"] = profile.NewUser{Nickname: "ana"}
	h.start(t)

	h.creds.emit("u-1")
	waitFor(t, h.boot, settled)

	// Drop the document by swapping stores underneath the loader.
	h.store.Store = memory.New()

	require.NoError(t, h.boot.Refresh(context.Background(), "u-1"))
	st := h.boot.State()
	require.NotNil(t, st.Profile)
	assert.Equal(t, "ana", st.Profile.Nickname)
	assert.Equal(t, PhaseAuthenticatedNew, st.Phase)
}

func TestBootstrapper_RefreshError(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.start(t)

	h.creds.emit("u-1")
	waitFor(t, h.boot, settled)

	h.store.mu.Lock()
	h.store.broken = true
	h.store.mu.Unlock()

	err := h.boot.Refresh(context.Background(), "u-1")
	require.Error(t, err)
	assert.Equal(t, "ana", h.boot.State().Profile.Nickname)
}

func TestBootstrapper_RefreshEmptyUserIsNoop(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.boot.Refresh(context.Background(), ""))
}

func TestBootstrapper_RefreshAfterStop(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.stop()

	err := h.boot.Refresh(context.Background(), "u-1")
	assert.ErrorIs(t, err, ErrStopped)

	h.creds.mu.Lock()
	assert.True(t, h.creds.unsubscribed)
	h.creds.mu.Unlock()
}

func TestBootstrapper_RefreshContextCancelled(t *testing.T) {
	h := newHarness(t)

	// Not running: the task sits in the queue and the caller gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.boot.Refresh(ctx, "u-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBootstrapper_RunTwice(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	err := h.boot.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestBootstrapper_StateIsACopy(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u-1", &profile.Profile{Nickname: "ana"})
	h.start(t)

	h.creds.emit("u-1")
	st := waitFor(t, h.boot, settled)

	st.Profile.Nickname = "mutated"
	st.Session.UserID = "other"

	again := h.boot.State()
	assert.Equal(t, "ana", again.Profile.Nickname)
	assert.Equal(t, "u-1", again.UserID())
}

func TestBootstrapper_WatchCancel(t *testing.T) {
	h := newHarness(t)

	calls := make(chan State, 4)
	cancel := h.boot.Watch(func(s State) { calls <- s })

	h.start(t)
	h.creds.emit("")
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("watcher not called")
	}

	cancel()
	h.creds.emit("")
	waitFor(t, h.boot, settled)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, calls)
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseLoading, "loading"},
		{PhaseUnauthenticated, "unauthenticated"},
		{PhaseAuthenticatedKnown, "authenticated_known"},
		{PhaseAuthenticatedNew, "authenticated_new"},
		{PhaseInconsistent, "inconsistent"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.phase.String())
		})
	}
}

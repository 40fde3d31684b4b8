package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/logging"
	"github.com/dmitrijs2005/duomatch/internal/profile"
)

var (
	ErrAlreadyRunning = errors.New("bootstrapper already running")
	ErrStopped        = errors.New("bootstrapper stopped")
)

// Credentials is the credential store as seen by the bootstrapper.
//
// Subscribe must deliver the current state first and then every change,
// one call at a time. An empty userID means signed out.
//
// SignOutUser signs out only if userID is still the signed-in user; a newer
// session is left alone.
type Credentials interface {
	Subscribe(onChange func(userID string)) (unsubscribe func())
	SignOutUser(ctx context.Context, userID string) error
}

// PendingProfiles exposes the new-user payload recorded at registration.
type PendingProfiles interface {
	PendingProfile(userID string) (profile.NewUser, bool)
	ForgetPending(userID string)
}

// Profiles loads and creates profiles; *profile.Loader implements it.
type Profiles interface {
	Load(ctx context.Context, userID string) (*profile.Profile, error)
	Create(ctx context.Context, userID string, u profile.NewUser) (*profile.Profile, error)
}

const queueSize = 16

type task struct {
	// ctx overrides the Run context when set (Refresh passes the caller's).
	ctx    context.Context
	run    func(ctx context.Context) error
	result chan error
}

// Bootstrapper reconciles auth notifications into State.
type Bootstrapper struct {
	creds    Credentials
	pending  PendingProfiles
	profiles Profiles
	logger   logging.Logger

	tasks   chan task
	done    chan struct{}
	started atomic.Bool

	mu       sync.RWMutex
	state    State
	watchers map[int]func(State)
	nextID   int
}

func New(creds Credentials, pending PendingProfiles, profiles Profiles, logger logging.Logger) *Bootstrapper {
	return &Bootstrapper{
		creds:    creds,
		pending:  pending,
		profiles: profiles,
		logger:   logger.With("module", "bootstrap"),
		tasks:    make(chan task, queueSize),
		done:     make(chan struct{}),
		state:    State{Loading: true, Phase: PhaseLoading},
		watchers: make(map[int]func(State)),
	}
}

// State returns a copy of the current state.
func (b *Bootstrapper) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.clone()
}

// Watch registers fn to be called with a copy of the state after every
// change. fn runs on the bootstrap goroutine, so it must not block on the
// bootstrapper (for example by calling Refresh).
func (b *Bootstrapper) Watch(fn func(State)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}
}

// Run subscribes to the credential store and processes notifications and
// refreshes one at a time until ctx is done. It can only be called once.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	unsubscribe := b.creds.Subscribe(b.onAuthChange)
	defer unsubscribe()
	defer close(b.done)

	b.logger.Info(ctx, "bootstrapper started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info(ctx, "bootstrapper stopped")
			return ctx.Err()
		case t := <-b.tasks:
			tctx := ctx
			if t.ctx != nil {
				tctx = t.ctx
			}
			err := t.run(tctx)
			if t.result != nil {
				t.result <- err
			}
		}
	}
}

// onAuthChange is the subscription callback. It only enqueues; the work
// happens on the Run goroutine.
func (b *Bootstrapper) onAuthChange(userID string) {
	t := task{run: func(ctx context.Context) error {
		if err := b.handleAuthChange(ctx, userID); err != nil {
			b.logger.Error(ctx, "auth change not applied", "user_id", userID, "error", err)
			return err
		}
		return nil
	}}

	select {
	case b.tasks <- t:
	case <-b.done:
	}
}

func (b *Bootstrapper) handleAuthChange(ctx context.Context, userID string) error {
	if userID == "" {
		b.commit(func(s *State) bool {
			s.Session, s.Profile = nil, nil
			s.Phase = PhaseUnauthenticated
			s.Loading = false
			return true
		})
		return nil
	}

	p, err := b.profiles.Load(ctx, userID)
	switch {
	case err == nil:
		b.signedIn(ctx, userID, p, PhaseAuthenticatedKnown)
		return nil

	case !errors.Is(err, common.ErrorNotFound):
		return err
	}

	if u, ok := b.pending.PendingProfile(userID); ok {
		p, err := b.profiles.Create(ctx, userID, u)
		if err != nil {
			return err
		}
		b.pending.ForgetPending(userID)
		b.signedIn(ctx, userID, p, PhaseAuthenticatedNew)
		return nil
	}

	b.logger.Error(ctx, "authenticated user has no profile, forcing sign-out",
		"user_id", userID, "phase", PhaseInconsistent)

	signOutErr := b.creds.SignOutUser(ctx, userID)
	b.commit(func(s *State) bool {
		s.Session, s.Profile = nil, nil
		s.Phase = PhaseUnauthenticated
		s.Loading = false
		return true
	})
	if signOutErr != nil {
		return fmt.Errorf("forced sign-out: %w", signOutErr)
	}
	return nil
}

func (b *Bootstrapper) signedIn(ctx context.Context, userID string, p *profile.Profile, phase Phase) {
	b.commit(func(s *State) bool {
		s.Session = &Session{UserID: userID}
		s.Profile = p
		s.Phase = phase
		s.Loading = false
		return true
	})
	b.logger.Info(ctx, "session ready", "user_id", userID, "phase", phase, "paired", p.Paired())
}

// Refresh re-reads the profile of userID (and its partner) and swaps it into
// the state. Auth transitions are not re-evaluated. The result is dropped if
// the session no longer belongs to userID by the time it is applied; a
// missing document leaves the state as it is.
func (b *Bootstrapper) Refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	t := task{
		ctx:    ctx,
		run:    func(ctx context.Context) error { return b.refresh(ctx, userID) },
		result: make(chan error, 1),
	}

	select {
	case b.tasks <- t:
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.result:
		return err
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bootstrapper) refresh(ctx context.Context, userID string) error {
	p, err := b.profiles.Load(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		b.logger.Warn(ctx, "refresh found no profile", "user_id", userID)
		return nil
	}
	if err != nil {
		b.logger.Error(ctx, "refresh failed", "user_id", userID, "error", err)
		return err
	}

	applied := b.commit(func(s *State) bool {
		if s.Session == nil || s.Session.UserID != userID {
			return false
		}
		s.Profile = p
		s.Phase = PhaseAuthenticatedKnown
		return true
	})
	if !applied {
		b.logger.Warn(ctx, "stale refresh ignored", "user_id", userID)
	}
	return nil
}

// commit applies fn under the lock and, if it reports a change, notifies
// watchers with a snapshot taken in the same critical section.
func (b *Bootstrapper) commit(fn func(s *State) bool) bool {
	b.mu.Lock()
	if !fn(&b.state) {
		b.mu.Unlock()
		return false
	}
	snapshot := b.state.clone()
	watchers := make([]func(State), 0, len(b.watchers))
	for _, w := range b.watchers {
		watchers = append(watchers, w)
	}
	b.mu.Unlock()

	for _, w := range watchers {
		w(snapshot.clone())
	}
	return true
}

// Package credentials is the client's credential store. It signs users in
// against the backend, keeps the session in the local metadata table and
// notifies subscribers of every authentication change.
package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/duomatch/internal/client/metadata"
	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/cryptox"
	"github.com/dmitrijs2005/duomatch/internal/dbx"
	"github.com/dmitrijs2005/duomatch/internal/logging"
	"github.com/dmitrijs2005/duomatch/internal/profile"
)

// API is the part of the backend client the store needs.
type API interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (string, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (userID, accessToken string, err error)
	SetAccessToken(token string)
}

var now = time.Now

type Store struct {
	api    API
	db     *sql.DB
	logger logging.Logger

	mu       sync.Mutex
	userID   string
	username string
	pending  map[string]profile.NewUser
	subs     map[int]*subscriber
	nextID   int
}

func NewStore(api API, db *sql.DB, logger logging.Logger) *Store {
	return &Store{
		api:     api,
		db:      db,
		logger:  logger.With("module", "credentials"),
		pending: make(map[string]profile.NewUser),
		subs:    make(map[int]*subscriber),
	}
}

// UserID returns the signed-in user id or "".
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Store) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Subscribe calls onChange with the current user id and then with every
// change. Calls for one subscriber never overlap.
func (s *Store) Subscribe(onChange func(userID string)) (unsubscribe func()) {
	sub := newSubscriber(onChange)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	sub.push(s.userID)
	s.mu.Unlock()

	go sub.run()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.stop()
	}
}

// emit must be called with s.mu held.
func (s *Store) emit(userID string) {
	for _, sub := range s.subs {
		sub.push(userID)
	}
}

// Register creates the account, remembers the profile payload for the new
// user id and signs in.
func (s *Store) Register(ctx context.Context, email string, password []byte, nickname string) error {
	email = strings.TrimSpace(email)
	nickname = strings.TrimSpace(nickname)
	if email == "" || len(password) == 0 || nickname == "" {
		return fmt.Errorf("%w: email, password and nickname are required", common.ErrorValidation)
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	verifier := cryptox.VerifierFor(password, salt)

	userID, err := s.api.Register(ctx, email, salt, verifier)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	s.mu.Lock()
	s.pending[userID] = profile.NewUser{Nickname: nickname, Email: email}
	s.mu.Unlock()

	s.logger.Info(ctx, "account registered", "user_id", userID)
	return s.SignIn(ctx, email, password)
}

// SignIn logs in, persists the session and notifies subscribers.
func (s *Store) SignIn(ctx context.Context, email string, password []byte) error {
	email = strings.TrimSpace(email)

	salt, err := s.api.GetSalt(ctx, email)
	if err != nil {
		return fmt.Errorf("get salt: %w", err)
	}

	userID, token, err := s.api.Login(ctx, email, cryptox.VerifierFor(password, salt))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	s.mu.Lock()
	err = s.saveSession(ctx, userID, token, email)
	if err == nil {
		s.setSession(userID, email, token)
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.logger.Info(ctx, "signed in", "user_id", userID)
	return nil
}

func (s *Store) saveSession(ctx context.Context, userID, token, username string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		values := map[string]string{
			metadata.KeyUserID:      userID,
			metadata.KeyAccessToken: token,
			metadata.KeyUsername:    username,
		}
		for k, v := range values {
			if err := repo.Set(ctx, k, []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// setSession must be called with s.mu held.
func (s *Store) setSession(userID, username, token string) {
	s.userID = userID
	s.username = username
	s.api.SetAccessToken(token)
	s.emit(userID)
}

// SignOut drops the persisted session. The in-memory session is cleared and
// subscribers are notified even if the local database fails.
func (s *Store) SignOut(ctx context.Context) error {
	return s.signOut(ctx, "")
}

// SignOutUser is SignOut restricted to userID: if another user (or nobody)
// is signed in by now, it does nothing.
func (s *Store) SignOutUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.signOut(ctx, userID)
}

// signOut clears the session if one exists and, when only is set, belongs
// to only. The check and the clear happen under one lock.
func (s *Store) signOut(ctx context.Context, only string) error {
	s.mu.Lock()
	userID := s.userID
	if userID == "" || (only != "" && userID != only) {
		s.mu.Unlock()
		if only != "" && userID != only {
			s.logger.Debug(ctx, "sign-out skipped, session changed", "user_id", only, "current", userID)
		}
		return nil
	}

	err := metadata.NewSQLiteRepository(s.db).Delete(ctx, metadata.SessionKeys...)
	s.userID, s.username = "", ""
	s.api.SetAccessToken("")
	s.emit("")
	s.mu.Unlock()

	if err != nil {
		s.logger.Error(ctx, "failed to clear session", "user_id", userID, "error", err)
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info(ctx, "signed out", "user_id", userID)
	return nil
}

// Restore resumes a session saved by an earlier run. Expired or malformed
// tokens are discarded.
func (s *Store) Restore(ctx context.Context) error {
	repo := metadata.NewSQLiteRepository(s.db)

	values := make(map[string]string, len(metadata.SessionKeys))
	for _, k := range metadata.SessionKeys {
		v, err := repo.Get(ctx, k)
		if err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		values[k] = string(v)
	}

	userID, token := values[metadata.KeyUserID], values[metadata.KeyAccessToken]
	if userID == "" || token == "" {
		return nil
	}

	if err := checkToken(token); err != nil {
		s.logger.Info(ctx, "discarding saved session", "user_id", userID, "reason", err)
		if err := repo.Delete(ctx, metadata.SessionKeys...); err != nil {
			return fmt.Errorf("discard session: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	s.setSession(userID, values[metadata.KeyUsername], token)
	s.mu.Unlock()
	s.logger.Info(ctx, "session restored", "user_id", userID)
	return nil
}

// checkToken only inspects the expiry; the server verifies the signature.
func checkToken(token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && !now().Before(claims.ExpiresAt.Time) {
		return common.ErrTokenExpired
	}
	return nil
}

// PendingProfile returns the registration payload for userID, if any.
func (s *Store) PendingProfile(userID string) (profile.NewUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.pending[userID]
	return u, ok
}

func (s *Store) ForgetPending(userID string) {
	s.mu.Lock()
	delete(s.pending, userID)
	s.mu.Unlock()
}

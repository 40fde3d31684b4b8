// Package accounts handles registration and login against accounts kept in
// the document store. Passwords never reach the server: clients send an
// argon2-derived verifier together with the salt used to derive it.
package accounts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/cryptox"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
	"github.com/dmitrijs2005/duomatch/internal/logging"
	"github.com/dmitrijs2005/duomatch/internal/server/auth"
)

const (
	fieldUserID    = "userId"
	fieldSalt      = "salt"
	fieldVerifier  = "verifier"
	fieldCreatedAt = "createdAt"
)

var (
	now       = time.Now
	newUserID = uuid.NewString
)

// Account is the server-side credential record of a user.
type Account struct {
	UserID    string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}

func (a *Account) document() docstore.Document {
	return docstore.Document{
		fieldUserID:    a.UserID,
		fieldSalt:      base64.StdEncoding.EncodeToString(a.Salt),
		fieldVerifier:  base64.StdEncoding.EncodeToString(a.Verifier),
		fieldCreatedAt: a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func accountFromDocument(doc docstore.Document) (*Account, error) {
	a := &Account{}
	var ok bool
	if a.UserID, ok = doc[fieldUserID].(string); !ok || a.UserID == "" {
		return nil, errors.New("account without user id")
	}

	var err error
	if a.Salt, err = decodeField(doc, fieldSalt); err != nil {
		return nil, err
	}
	if a.Verifier, err = decodeField(doc, fieldVerifier); err != nil {
		return nil, err
	}
	if s, ok := doc[fieldCreatedAt].(string); ok {
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	return a, nil
}

func decodeField(doc docstore.Document, key string) ([]byte, error) {
	s, _ := doc[key].(string)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("account field %s is malformed", key)
	}
	return b, nil
}

// Normalize is the account key for a username: trimmed and lower-cased.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Service provides Register, GetSalt and Login.
type Service struct {
	store       docstore.Store
	jwtSecret   []byte
	tokenTTL    time.Duration
	logger      logging.Logger
	registering sync.Mutex
}

func NewService(store docstore.Store, secretKey string, tokenTTL time.Duration, logger logging.Logger) *Service {
	return &Service{
		store:     store,
		jwtSecret: []byte(secretKey),
		tokenTTL:  tokenTTL,
		logger:    logger.With("module", "accounts"),
	}
}

// Register creates an account and returns the new user id. A taken
// username yields common.ErrorAlreadyExists.
func (s *Service) Register(ctx context.Context, username string, salt, verifier []byte) (string, error) {
	key := Normalize(username)
	if key == "" || len(salt) == 0 || len(verifier) == 0 {
		return "", fmt.Errorf("%w: username, salt and verifier are required", common.ErrorValidation)
	}

	// Get-then-set is not atomic in the store, so registrations are
	// serialized within this process.
	s.registering.Lock()
	defer s.registering.Unlock()

	_, err := s.store.Get(ctx, common.CollectionAccounts, key)
	switch {
	case err == nil:
		return "", common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return "", fmt.Errorf("lookup account: %w", err)
	}

	a := &Account{UserID: newUserID(), Salt: salt, Verifier: verifier, CreatedAt: now()}
	if err := s.store.Set(ctx, common.CollectionAccounts, key, a.document()); err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}

	s.logger.Info(ctx, "account registered", "user_id", a.UserID)
	return a.UserID, nil
}

// GetSalt returns the user's salt, or a random one for unknown users so
// the response does not reveal whether the account exists.
func (s *Service) GetSalt(ctx context.Context, username string) ([]byte, error) {
	a, err := s.lookup(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		return common.GenerateRandByteArray(cryptox.SaltSize), nil
	}
	if err != nil {
		return nil, err
	}
	return a.Salt, nil
}

// Login checks verifier in constant time and returns the user id and a
// signed access token. Unknown users and bad verifiers both yield
// common.ErrorUnauthorized.
func (s *Service) Login(ctx context.Context, username string, verifier []byte) (string, string, error) {
	a, err := s.lookup(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		return "", "", common.ErrorUnauthorized
	}
	if err != nil {
		return "", "", err
	}

	if !cryptox.Equal(a.Verifier, verifier) {
		s.logger.Warn(ctx, "login rejected", "user_id", a.UserID)
		return "", "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(a.UserID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return a.UserID, token, nil
}

func (s *Service) lookup(ctx context.Context, username string) (*Account, error) {
	key := Normalize(username)
	if key == "" {
		return nil, common.ErrorNotFound
	}

	doc, err := s.store.Get(ctx, common.CollectionAccounts, key)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup account: %v", common.ErrorInternal, err)
	}

	a, err := accountFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return a, nil
}

// Package linking pairs two profiles through single-use invite codes.
package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
	"github.com/dmitrijs2005/duomatch/internal/logging"
	"github.com/dmitrijs2005/duomatch/internal/profile"
)

var (
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteUsed     = errors.New("invite already used")
	ErrSelfInvite     = errors.New("cannot accept own invite")
	ErrAlreadyLinked  = errors.New("profile already linked")
)

const (
	fieldOwnerID   = "ownerId"
	fieldCreatedAt = "createdAt"
	fieldUsedBy    = "usedBy"
)

var (
	now         = time.Now
	newCode     = func() string { return xid.New().String() }
	newCoupleID = uuid.NewString
)

// Invite is a stored invite code.
type Invite struct {
	Code      string
	OwnerID   string
	CreatedAt time.Time
	UsedBy    string
}

func (i Invite) document() docstore.Document {
	var usedBy any
	if i.UsedBy != "" {
		usedBy = i.UsedBy
	}
	return docstore.Document{
		fieldOwnerID:   i.OwnerID,
		fieldCreatedAt: i.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUsedBy:    usedBy,
	}
}

func inviteFromDocument(code string, doc docstore.Document) (Invite, error) {
	owner, ok := doc[fieldOwnerID].(string)
	if !ok || owner == "" {
		return Invite{}, fmt.Errorf("%w: invite %s has no owner", common.ErrorValidation, code)
	}
	inv := Invite{Code: code, OwnerID: owner}

	if s, ok := doc[fieldCreatedAt].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Invite{}, fmt.Errorf("%w: invite %s created at %q", common.ErrorValidation, code, s)
		}
		inv.CreatedAt = t
	}
	if s, ok := doc[fieldUsedBy].(string); ok {
		inv.UsedBy = s
	}
	return inv, nil
}

// linked is true once either half of the pairing is set.
func linked(p *profile.Profile) bool {
	return p.PartnerID != "" || p.CoupleID != ""
}

// Service creates and redeems invites.
type Service struct {
	store    docstore.Store
	profiles *profile.Loader
	logger   logging.Logger
}

func NewService(store docstore.Store, profiles *profile.Loader, logger logging.Logger) *Service {
	return &Service{store: store, profiles: profiles, logger: logger.With("module", "linking")}
}

// CreateInvite stores a fresh invite owned by ownerID and returns its code.
// The owner must have a profile and must not be paired yet.
func (s *Service) CreateInvite(ctx context.Context, ownerID string) (string, error) {
	owner, err := s.profiles.Get(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if linked(owner) {
		return "", ErrAlreadyLinked
	}

	inv := Invite{Code: newCode(), OwnerID: ownerID, CreatedAt: now()}
	if err := s.store.Set(ctx, common.CollectionInvites, inv.Code, inv.document()); err != nil {
		return "", fmt.Errorf("save invite: %w", err)
	}

	s.logger.Info(ctx, "invite created", "user_id", ownerID, "code", inv.Code)
	return inv.Code, nil
}

// GetInvite reads the invite stored under code.
func (s *Service) GetInvite(ctx context.Context, code string) (Invite, error) {
	doc, err := s.store.Get(ctx, common.CollectionInvites, code)
	if errors.Is(err, common.ErrorNotFound) {
		return Invite{}, ErrInviteNotFound
	}
	if err != nil {
		return Invite{}, fmt.Errorf("load invite: %w", err)
	}
	return inviteFromDocument(code, doc)
}

// AcceptInvite links userID with the owner of code and returns the new
// couple id. The writes are sequential: the invite is marked used last.
func (s *Service) AcceptInvite(ctx context.Context, userID, code string) (string, error) {
	inv, err := s.GetInvite(ctx, code)
	if err != nil {
		return "", err
	}
	switch {
	case inv.UsedBy != "":
		return "", ErrInviteUsed
	case inv.OwnerID == userID:
		return "", ErrSelfInvite
	}

	me, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	owner, err := s.profiles.Get(ctx, inv.OwnerID)
	if err != nil {
		return "", err
	}
	if linked(me) || linked(owner) {
		return "", ErrAlreadyLinked
	}

	coupleID := newCoupleID()

	me.PartnerID, me.CoupleID = inv.OwnerID, coupleID
	owner.PartnerID, owner.CoupleID = userID, coupleID

	if err := s.profiles.Save(ctx, userID, me); err != nil {
		return "", err
	}
	if err := s.profiles.Save(ctx, inv.OwnerID, owner); err != nil {
		return "", err
	}

	inv.UsedBy = userID
	if err := s.store.Set(ctx, common.CollectionInvites, code, inv.document()); err != nil {
		return "", fmt.Errorf("mark invite used: %w", err)
	}

	s.logger.Info(ctx, "profiles linked", "user_id", userID, "partner_id", inv.OwnerID, "couple_id", coupleID)
	return coupleID, nil
}

package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
	"github.com/dmitrijs2005/duomatch/internal/logging"
)

// Loader reads and writes profiles in the users collection.
type Loader struct {
	store  docstore.Store
	logger logging.Logger
}

func NewLoader(store docstore.Store, logger logging.Logger) *Loader {
	return &Loader{store: store, logger: logger.With("module", "profile_loader")}
}

// Load fetches the profile of userID and, when it names a partner, embeds
// the partner's profile as PartnerData.
//
// A missing user document yields an error matching common.ErrorNotFound.
// A missing partner document is not an error: PartnerData stays nil.
// Any other store error is returned as is; nothing is retried.
func (l *Loader) Load(ctx context.Context, userID string) (*Profile, error) {
	p, err := l.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if p.PartnerID == "" {
		return p, nil
	}

	partner, err := l.get(ctx, p.PartnerID)
	switch {
	case err == nil:
		p.PartnerData = partner
	case errors.Is(err, common.ErrorNotFound):
		l.logger.Warn(ctx, "partner profile missing", "user_id", userID, "partner_id", p.PartnerID)
	default:
		return nil, err
	}

	return p, nil
}

// Get fetches a single profile without the partner join.
func (l *Loader) Get(ctx context.Context, userID string) (*Profile, error) {
	return l.get(ctx, userID)
}

func (l *Loader) get(ctx context.Context, userID string) (*Profile, error) {
	doc, err := l.store.Get(ctx, common.CollectionUsers, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	p, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", userID, err)
	}
	return p, nil
}

// Create writes the initial profile of a new user and returns it.
func (l *Loader) Create(ctx context.Context, userID string, u NewUser) (*Profile, error) {
	p := Initial(u)
	if err := l.Save(ctx, userID, p); err != nil {
		return nil, err
	}
	l.logger.Info(ctx, "profile created", "user_id", userID)
	return p, nil
}

// Save replaces the stored profile of userID with p.
func (l *Loader) Save(ctx context.Context, userID string, p *Profile) error {
	if err := l.store.Set(ctx, common.CollectionUsers, userID, p.Document()); err != nil {
		return fmt.Errorf("save profile %s: %w", userID, err)
	}
	return nil
}

// Package profile models a user's couple profile and loads it, together
// with the partner's profile, from the "users" collection.
package profile

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/dmitrijs2005/duomatch/internal/docstore"
)

// Document field names in the users collection.
const (
	FieldNickname  = "nickname"
	FieldEmail     = "email"
	FieldPartnerID = "partnerId"
	FieldCoupleID  = "coupleId"
	FieldScore     = "score"
)

// Profile is a persisted per-user record. Empty PartnerID/CoupleID mean the
// user is not linked; they are stored as null.
//
// PartnerData is filled by Loader.Load and is never written back.
type Profile struct {
	Nickname    string
	Email       string
	PartnerID   string
	CoupleID    string
	Score       int64
	PartnerData *Profile
}

// NewUser is the payload captured at registration and used to create the
// first version of a profile.
type NewUser struct {
	Nickname string
	Email    string
}

// Paired reports whether both link fields are set.
func (p *Profile) Paired() bool {
	return p != nil && p.PartnerID != "" && p.CoupleID != ""
}

// Initial returns the profile written for a freshly registered user.
func Initial(u NewUser) *Profile {
	return &Profile{Nickname: u.Nickname, Email: u.Email}
}

// Document renders p for storage. PartnerData is dropped.
func (p *Profile) Document() docstore.Document {
	return docstore.Document{
		FieldNickname:  p.Nickname,
		FieldEmail:     p.Email,
		FieldPartnerID: nullable(p.PartnerID),
		FieldCoupleID:  nullable(p.CoupleID),
		FieldScore:     p.Score,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// FromDocument parses a stored users document. Missing fields take their
// zero value; fields of the wrong type are an error.
func FromDocument(d docstore.Document) (*Profile, error) {
	p := &Profile{}
	var err error

	if p.Nickname, err = stringField(d, FieldNickname); err != nil {
		return nil, err
	}
	if p.Email, err = stringField(d, FieldEmail); err != nil {
		return nil, err
	}
	if p.PartnerID, err = stringField(d, FieldPartnerID); err != nil {
		return nil, err
	}
	if p.CoupleID, err = stringField(d, FieldCoupleID); err != nil {
		return nil, err
	}
	if p.Score, err = intField(d, FieldScore); err != nil {
		return nil, err
	}
	return p, nil
}

func stringField(d docstore.Document, name string) (string, error) {
	switch v := d[name].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("field %q: want string, got %T", name, v)
	}
}

func intField(d docstore.Document, name string) (int64, error) {
	switch v := d[name].(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("field %q: %v is not an integer", name, v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("field %q: want number, got %T", name, v)
	}
}

// Clone returns a deep copy of p, including PartnerData.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.PartnerData = p.PartnerData.Clone()
	return &cp
}

// Package session turns authentication-state notifications into the
// bootstrap state the screen router renders from.
//
// A Bootstrapper owns a State value. Every mutation happens on the single
// goroutine running Bootstrapper.Run, which drains a queue fed by the
// credential store subscription and by Refresh calls. Readers get copies.
package session

import "github.com/dmitrijs2005/duomatch/internal/profile"

// Session is an authenticated user. A nil *Session means signed out.
type Session struct {
	UserID string
}

// Phase is the last bootstrap state reached.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticatedKnown
	PhaseAuthenticatedNew
	// PhaseInconsistent is transient: a session without a profile is signed
	// out immediately and the state ends in PhaseUnauthenticated.
	PhaseInconsistent
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticatedKnown:
		return "authenticated_known"
	case PhaseAuthenticatedNew:
		return "authenticated_new"
	case PhaseInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// State is the bootstrap projection used for routing.
//
// Loading is true until the first notification has been fully processed.
// Profile is non-nil only while Session is non-nil.
type State struct {
	Session *Session
	Profile *profile.Profile
	Loading bool
	Phase   Phase
}

// UserID returns the signed-in user id or "".
func (s State) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.UserID
}

func (s State) clone() State {
	cp := s
	if s.Session != nil {
		sess := *s.Session
		cp.Session = &sess
	}
	cp.Profile = s.Profile.Clone()
	return cp
}

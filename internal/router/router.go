// Package router maps bootstrap state to the screen to render.
package router

import "github.com/dmitrijs2005/duomatch/internal/session"

type Screen int

const (
	ScreenLoading Screen = iota
	ScreenAuth
	ScreenLinking
	ScreenMain
)

func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenAuth:
		return "auth"
	case ScreenLinking:
		return "linking"
	case ScreenMain:
		return "main"
	default:
		return "unknown"
	}
}

// Route picks the screen for st. The checks run in priority order, so a
// stale profile never shows once the session is gone.
func Route(st session.State) Screen {
	switch {
	case st.Loading:
		return ScreenLoading
	case st.Session == nil:
		return ScreenAuth
	case st.Profile == nil:
		return ScreenLoading
	case !st.Profile.Paired():
		return ScreenLinking
	default:
		return ScreenMain
	}
}

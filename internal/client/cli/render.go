package cli

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/duomatch/internal/router"
	"github.com/dmitrijs2005/duomatch/internal/session"
)

// renderState draws the screen the router picks for st.
func renderState(st session.State) string {
	switch router.Route(st) {
	case router.ScreenLoading:
		return "Loading..."

	case router.ScreenAuth:
		return "Welcome to DuoMatch. Type 'register' to create an account or 'login' to sign in."

	case router.ScreenLinking:
		var b strings.Builder
		fmt.Fprintf(&b, "Hi, %s! You are not linked with a partner yet.\n", st.Profile.Nickname)
		b.WriteString("Type 'invite' to get a code for your partner, or 'accept <code>' to use theirs.")
		return b.String()

	case router.ScreenMain:
		partner := "(unknown)"
		if st.Profile.PartnerData != nil {
			partner = st.Profile.PartnerData.Nickname
		}
		return fmt.Sprintf("Couple %s\nYou: %s, partner: %s\nScore: %d",
			st.Profile.CoupleID, st.Profile.Nickname, partner, st.Profile.Score)
	}
	return ""
}

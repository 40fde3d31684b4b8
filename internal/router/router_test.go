package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/duomatch/internal/profile"
	"github.com/dmitrijs2005/duomatch/internal/session"
)

func TestRoute(t *testing.T) {
	sess := &session.Session{UserID: "u-1"}

	tests := []struct {
		name  string
		state session.State
		want  Screen
	}{
		{
			name:  "loading wins over everything",
			state: session.State{Loading: true, Session: sess, Profile: &profile.Profile{PartnerID: "p", CoupleID: "c"}},
			want:  ScreenLoading,
		},
		{
			name:  "no session",
			state: session.State{},
			want:  ScreenAuth,
		},
		{
			name:  "no session with stale profile",
			state: session.State{Profile: &profile.Profile{PartnerID: "p", CoupleID: "c"}},
			want:  ScreenAuth,
		},
		{
			name:  "session without profile",
			state: session.State{Session: sess},
			want:  ScreenLoading,
		},
		{
			name:  "unpaired",
			state: session.State{Session: sess, Profile: &profile.Profile{Nickname: "ana"}},
			want:  ScreenLinking,
		},
		{
			name:  "partner without couple",
			state: session.State{Session: sess, Profile: &profile.Profile{PartnerID: "p"}},
			want:  ScreenLinking,
		},
		{
			name:  "couple without partner",
			state: session.State{Session: sess, Profile: &profile.Profile{CoupleID: "c"}},
			want:  ScreenLinking,
		},
		{
			name:  "paired",
			state: session.State{Session: sess, Profile: &profile.Profile{PartnerID: "p", CoupleID: "c"}},
			want:  ScreenMain,
		},
		{
			name:  "paired with missing partner document",
			state: session.State{Session: sess, Profile: &profile.Profile{PartnerID: "p", CoupleID: "c", PartnerData: nil}},
			want:  ScreenMain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.state))
		})
	}
}

func TestScreen_String(t *testing.T) {
	assert.Equal(t, "loading", ScreenLoading.String())
	assert.Equal(t, "auth", ScreenAuth.String())
	assert.Equal(t, "linking", ScreenLinking.String())
	assert.Equal(t, "main", ScreenMain.String())
	assert.Equal(t, "unknown", Screen(9).String())
}

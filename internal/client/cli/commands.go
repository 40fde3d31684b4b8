package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/duomatch/internal/client/api"
	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/linking"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var (
	errNotLoggedIn    = errors.New("please log in first")
	errSessionLoading = errors.New("session is still loading, try again in a moment")
)

// activeUser returns the signed-in user id once the bootstrapper has caught
// up with the credential store. The access token always belongs to the
// credential store's user.
func (a *App) activeUser() (string, error) {
	userID := a.auth.UserID()
	if userID == "" {
		return "", errNotLoggedIn
	}
	if a.boot.State().UserID() != userID {
		return "", errSessionLoading
	}
	return userID, nil
}

// Register prompts for email, password and nickname and creates the account.
// The bootstrapper picks up the new session and writes the profile.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	nickname, err := getSimpleText(a.reader, "Enter nickname", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, email, password, nickname); err != nil {
		return err
	}
	printlnFn("Success!")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.SignIn(ctx, email, password); err != nil {
		return err
	}
	printlnFn("Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}

// Invite creates an invite code for the signed-in user.
func (a *App) Invite(ctx context.Context) error {
	userID, err := a.activeUser()
	if err != nil {
		return err
	}

	code, err := a.linking.CreateInvite(ctx, userID)
	if err != nil {
		return err
	}
	printlnFn("Share this code with your partner:", code)
	return nil
}

// Accept links the signed-in user with the invite owner and refreshes the
// local profile so the main screen shows up.
func (a *App) Accept(ctx context.Context, code string) error {
	userID, err := a.activeUser()
	if err != nil {
		return err
	}

	coupleID, err := a.linking.AcceptInvite(ctx, userID, code)
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "linked", "user_id", userID, "couple_id", coupleID)

	return a.boot.Refresh(ctx, userID)
}

// Refresh re-reads the profile, e.g. after the partner accepted an invite.
func (a *App) Refresh(ctx context.Context) error {
	userID, err := a.activeUser()
	if err != nil {
		return err
	}
	return a.boot.Refresh(ctx, userID)
}

func (a *App) Status(ctx context.Context) error {
	printlnFn(renderState(a.boot.State()))
	return nil
}

// describe turns known errors into short user-facing messages.
func describe(err error) string {
	switch {
	case errors.Is(err, api.ErrUnavailable):
		return "server unavailable, try again later"
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, common.ErrorUnauthorized):
		return "wrong email or password"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "this email is already registered"
	case errors.Is(err, linking.ErrInviteNotFound):
		return "no such invite code"
	case errors.Is(err, linking.ErrInviteUsed):
		return "this invite has already been used"
	case errors.Is(err, linking.ErrSelfInvite):
		return "you cannot accept your own invite"
	case errors.Is(err, linking.ErrAlreadyLinked):
		return "one of you is already linked with a partner"
	default:
		return fmt.Sprint(err)
	}
}

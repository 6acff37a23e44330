package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/soundcircle/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for email, username, and password and creates an account.
// The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Register(ctx, email, username, string(password)); err != nil {
		return err
	}

	printlnFn("Account created, you can now log in.")
	return nil
}

// Login authenticates and then waits for the session to fully settle
// (identity validated and profile loaded) before reporting success, so the
// prompt immediately reflects the signed-in state.
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

	if err := a.api.Login(ctx, email, string(password)); err != nil {
		printlnFn(fmt.Sprintf("Login failed: %s", err))
		return nil
	}

	if a.provider.WaitForAuthStateChange(a.config.AuthSettleTimeout) {
		printlnFn("Logged in.")
	} else {
		printlnFn("Logged in, but the profile is not available yet.")
	}
	return nil
}

// Logout signs out optimistically: local state is cleared immediately and
// the server call runs under a timeout.
func (a *App) Logout(ctx context.Context) error {
	a.provider.SignOut(ctx)
	return nil
}

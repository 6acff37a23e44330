package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Whoami prints the validated identity and profile from the provider's
// current snapshot.
func (a *App) Whoami(ctx context.Context) error {
	s := a.provider.Snapshot()
	if s.User == nil {
		printlnFn("Not logged in.")
		return nil
	}

	printlnFn(fmt.Sprintf("User:  %s (%s)", s.User.Email, s.User.ID))
	if s.Profile != nil {
		printlnFn(fmt.Sprintf("Name:  %s (@%s), role %s", s.Profile.DisplayName, s.Profile.Username, s.Profile.Role))
	} else if s.ProfileErr {
		printlnFn("Profile: unavailable (temporary backend issue)")
	}
	return nil
}

// Wallet refreshes and prints the wallet snapshot.
func (a *App) Wallet(ctx context.Context) error {
	a.provider.RefreshWalletBalance(ctx)

	w := a.provider.Wallet()
	if w.PointsBalance == nil {
		printlnFn("No wallet yet.")
		return nil
	}

	printlnFn(fmt.Sprintf("Points:          %d", *w.PointsBalance))
	if w.EarningsPoints != nil {
		printlnFn(fmt.Sprintf("Earnings:        %d (locked %d)", *w.EarningsPoints, derefInt64(w.LockedEarningsPoints)))
	}
	if w.NextTopupDueOn != nil {
		printlnFn(fmt.Sprintf("Next top-up due: %s", *w.NextTopupDueOn))
	}
	return nil
}

// Spend prompts for an amount and debits it from the points balance. The
// updated balance arrives through the realtime stream.
func (a *App) Spend(ctx context.Context) error {
	amountText, err := getSimpleText(a.reader, "Amount to spend", os.Stdout)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseInt(amountText, 10, 64)
	if err != nil || amount <= 0 {
		printlnFn("Amount must be a positive number.")
		return nil
	}

	if err := a.api.AdjustPoints(ctx, -amount); err != nil {
		printlnFn(fmt.Sprintf("Could not spend points: %s", err))
		return nil
	}
	printlnFn("Done.")
	return nil
}

// RefreshProfile forces a profile refetch for the current identity.
func (a *App) RefreshProfile(ctx context.Context) error {
	a.provider.RefreshProfile(ctx)
	return a.Whoami(ctx)
}

// Avatar uploads an image file as the user's avatar via a presigned URL and
// points the profile at the new storage key.
func (a *App) Avatar(ctx context.Context) error {
	path, err := getSimpleText(a.reader, "Path to image file", os.Stdout)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		printlnFn(fmt.Sprintf("Could not read file: %s", err))
		return nil
	}

	key, err := a.api.UploadAvatar(ctx, data)
	if err != nil {
		printlnFn(fmt.Sprintf("Upload failed: %s", err))
		return nil
	}

	profile := a.provider.Profile()
	if profile == nil {
		printlnFn("Uploaded, but no profile to attach the avatar to.")
		return nil
	}
	if _, err := a.api.UpdateProfile(ctx, profile.ID, profile.DisplayName, key); err != nil {
		printlnFn(fmt.Sprintf("Could not update profile: %s", err))
		return nil
	}

	a.provider.RefreshProfile(ctx)
	printlnFn("Avatar updated.")
	return nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

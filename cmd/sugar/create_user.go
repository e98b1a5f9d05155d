package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sugar/internal/app"
	"sugar/internal/config"
	"sugar/internal/domain"
)

var (
	newUsername string
	newPassword string
	newIsAdmin  bool
	newTimezone string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a password user, optionally with a timezone",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if cfg.DatabaseURL == "" {
			return errors.New("create-user needs DATABASE_URL: the in-memory store does not outlive the command")
		}
		st, err := openStore(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		user, err := createUser(cmd.Context(), st, cfg, newUsername, newPassword, newIsAdmin, newTimezone)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", user.ID, user.Username)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&newUsername, "username", "", "Login name")
	createUserCmd.Flags().StringVar(&newPassword, "password", "", "Password, at least 8 characters")
	createUserCmd.Flags().BoolVar(&newIsAdmin, "admin", false, "Grant access to every user's readings")
	createUserCmd.Flags().StringVar(&newTimezone, "timezone", "", "IANA timezone used to localize readings")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("password")
}

func createUser(ctx context.Context, st *store, cfg *config.Config, username, password string, isAdmin bool, timezone string) (*domain.User, error) {
	user, err := app.NewAuthService(st.users, st.sessions).
		WithSessionTTL(cfg.SessionTTL).
		CreateUser(ctx, username, password, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if timezone == "" {
		return user, nil
	}
	if _, err := app.NewDetailsService(st.details).Save(ctx, domain.CallerFor(user), app.DetailsInput{Timezone: timezone}); err != nil {
		return user, fmt.Errorf("save details: %w", err)
	}
	return user, nil
}

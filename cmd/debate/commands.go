package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/ai-debate/internal/activity"
	"github.com/suPer8Hu/ai-debate/internal/db"
	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
)

func newSignupCmd(a *app) *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.passwordOrPrompt(password)
			if err != nil {
				return err
			}
			rec, err := a.svc.Signup(cmd.Context(), email, pw, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome, %s! You are on the %s tier.\n", rec.DisplayName, rec.Tier)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.passwordOrPrompt(password)
			if err != nil {
				return err
			}
			rec, err := a.svc.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s tier).\n", rec.DisplayName, rec.Tier)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) passwordOrPrompt(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	pw, err := a.prompt("Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintln(a.out, "Not signed in.")
				return nil
			}
			fmt.Fprintf(a.out, "%s <%s>, %s tier\n", rec.DisplayName, rec.Email, rec.Tier)
			return nil
		},
	}
}

func newNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new [participant...]",
		Short: "Start a debate session (defaults to every model your tier allows)",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.NewSession(cmd.Context(), args)
			if err != nil {
				return err
			}
			renderNewSession(a.out, res)
			return nil
		},
	}
}

func newSendCmd(a *app) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "send --session ID prompt...",
		Short: "Broadcast a prompt to every participant of a session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.svc.LoadSession(ctx, sessionID); err != nil {
				return err
			}
			if _, err := a.svc.Send(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			renderResponses(a.out, a.svc.Responses())
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load SESSION_ID",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.svc.LoadSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderTranscript(a.out, sess)
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.svc.History(cmd.Context())
			if err != nil {
				return err
			}
			renderHistory(a.out, list)
			return nil
		},
	}
}

func newDailyCmd(a *app) *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show the daily digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.svc.Daily(cmd.Context(), generate)
			if err != nil {
				return err
			}
			renderDigest(a.out, d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "generate a fresh digest first")
	return cmd
}

func newUsageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show quota consumption against your tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, l, err := a.svc.Usage(cmd.Context())
			if err != nil {
				return err
			}
			renderUsage(a.out, c, l)
			return nil
		},
	}
}

func newUpgradeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "upgrade TIER",
		Short:     "Start the payment flow for pro or enterprise",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(tokenstore.TierPro), string(tokenstore.TierEnterprise)},
		RunE: func(cmd *cobra.Command, args []string) error {
			co, err := a.svc.Upgrade(cmd.Context(), tokenstore.Tier(strings.ToLower(args[0])))
			if err != nil {
				return err
			}
			renderCheckout(a.out, co)
			return nil
		},
	}
}

func newConfirmUpgradeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-upgrade",
		Short: "Refresh your tier after paying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.ConfirmUpgrade(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "You are on the %s tier.\n", rec.Tier)
			return nil
		},
	}
}

func newActivityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "activity",
		Short: "Summarize your recorded activity from the worker's database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := db.Connect(a.cfg.ActivityDBDSN)
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}
			store := activity.NewStore(gdb)
			if err := store.Migrate(); err != nil {
				return err
			}
			totals, err := store.Totals(cmd.Context(), a.tracker.UserKey())
			if err != nil {
				return err
			}
			renderActivity(a.out, a.tracker.UserKey(), totals)
			return nil
		},
	}
}

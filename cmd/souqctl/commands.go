// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/events"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/orders"
	"github.com/tomtom215/souq/internal/payment"
)

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the history",
		Long: `Apply pending schema migrations and print the history.

Opening the database creates the base schema and applies every pending
migration; this command then lists what has been applied.`,
		Args: cobra.NoArgs,
		RunE: open.run(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
			applied, err := a.db.RunMigrations(ctx)
			if err != nil {
				return err
			}
			history, err := a.db.MigrationHistory(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, m := range history {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, m.AppliedAt.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			version, err := a.db.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema version %d, %d migration(s) applied by this run\n", version, applied)
			return nil
		}),
	}
}

func createAdminCmd(open opener) *cobra.Command {
	var (
		email    string
		password string
		name     string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a staff account, or promote an existing one to admin",
		Long: `Create a staff account.

With the default role "admin" an existing account with the same email is
promoted and re-activated instead; its password is left unchanged.

Examples:
  souqctl create-admin --email owner@example.com --password 's3cret-pass'
  souqctl create-admin --email writer@example.com --password '...' --role editor`,
		Args: cobra.NoArgs,
		RunE: open.run(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
			svc := auth.NewService(a.db, auth.NewMemorySessionStore(), nil, nil, auth.ServiceConfig{
				MinPasswordLength: a.cfg.Security.MinPasswordLen,
			})

			if role == models.RoleAdmin {
				u, created, err := svc.EnsureAdmin(ctx, email, password, name)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(out, "created admin %s (%s)\n", u.Email, u.ID)
				} else {
					fmt.Fprintf(out, "%s is an active admin\n", u.Email)
				}
				return nil
			}
			if role == models.RoleCustomer {
				return errors.New("create-admin only creates staff accounts")
			}
			u, err := svc.CreateUser(ctx, auth.Registration{Email: email, Name: name, Password: password}, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "created %s %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "password for a new account")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "admin, manager or editor")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func gatewaysCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "gateways",
		Short: "List payment gateways with their configuration and admin status",
		Args:  cobra.NoArgs,
		RunE: open.run(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
			registry := payment.NewRegistryFromConfig(&a.cfg.Payments, a.db)
			stored, err := a.db.ListGatewaySettings(ctx)
			if err != nil {
				return err
			}
			enabled := make(map[string]bool, len(stored))
			for _, s := range stored {
				enabled[s.Slug] = s.Enabled
			}
			configured := make(map[string]bool)
			for _, slug := range registry.Configured() {
				configured[slug] = true
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GATEWAY\tCONFIGURED\tENABLED\tFEE")
			for _, slug := range payment.Slugs {
				on, ok := enabled[slug]
				if !ok {
					on = configured[slug]
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", slug, yesNo(configured[slug]), yesNo(on),
					formatFee(registry.Fee(slug), a.cfg.Store.Currency))
			}
			return tw.Flush()
		}),
	}
}

func expireOrdersCmd(open opener) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "expire-orders",
		Short: "Cancel unpaid online orders and return their stock",
		Long: `Cancel pending orders of online gateways that were not paid in time and
return their stock. Bank transfer and cash on delivery orders are never
expired. The server runs this on a schedule; use it to catch up by hand.`,
		Args: cobra.NoArgs,
		RunE: open.run(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
			bus := events.NewInProcessBus(logging.NewWatermillAdapter())
			defer func() { _ = bus.Close() }()

			carts := cart.NewService(cart.NewMemoryStore(), nil, a.cfg.Store.CartTTL, a.cfg.Store.Currency)
			svc := orders.NewService(a.db, carts, payment.NewRegistryFromConfig(&a.cfg.Payments, a.db), bus, orders.Config{
				Currency:        a.cfg.Store.Currency,
				BaseURL:         a.cfg.Server.BaseURL,
				StoreName:       a.cfg.Store.Name,
				PendingOrderTTL: a.cfg.Store.PendingOrderTTL,
			})
			n, err := svc.ExpirePending(ctx, olderThan)
			fmt.Fprintf(out, "expired %d order(s)\n", n)
			return err
		}),
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of pending orders to expire (default: STORE_PENDING_ORDER_TTL)")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatFee(minor int64, currency string) string {
	if minor == 0 {
		return "-"
	}
	return i18n.FormatMinor(minor, currency) + " " + currency
}

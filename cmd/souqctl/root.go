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
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
)

// app is what every command works against.
type app struct {
	cfg       *config.Config
	db        *database.DB
	languages *i18n.Registry
	closer    func() error
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// opener builds the app for a command. Tests swap it for one backed by an
// in-memory database.
type opener func(ctx context.Context) (*app, error)

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	languages := i18n.NewRegistry(cfg.Store.DefaultLanguage)
	if err := languages.Reload(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load languages: %w", err)
	}
	return &app{cfg: cfg, db: db, languages: languages, closer: db.Close}, nil
}

// command is the shape of every subcommand body.
type command func(ctx context.Context, a *app, out io.Writer, args []string) error

// run opens the app, runs fn and closes the app.
func (open opener) run(fn command) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				logging.Error().Err(cerr).Msg("Error closing database")
			}
		}()
		return fn(cmd.Context(), a, cmd.OutOrStdout(), args)
	}
}

func newRootCmd(open opener) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "souqctl",
		Short:         "Souq maintenance tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before configuration")

	root.AddCommand(migrateCmd(open))
	root.AddCommand(createAdminCmd(open))
	root.AddCommand(seedCmd(open))
	root.AddCommand(gatewaysCmd(open))
	root.AddCommand(expireOrdersCmd(open))
	return root
}

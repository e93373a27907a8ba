package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/VargaBalazsAdam/sqlview/internal/config"
	"github.com/VargaBalazsAdam/sqlview/internal/session"
	"github.com/VargaBalazsAdam/sqlview/internal/sheet"
	"github.com/VargaBalazsAdam/sqlview/internal/tui"
)

const version = "v0.3.0"

// runTUI is swapped out in tests.
var runTUI = tui.Run

// NewRootCmd builds the top-level `sqlview` command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlview [file.db]",
		Short: "Browse and edit SQLite databases in the terminal",
		Long: `sqlview lists the tables of a SQLite database file and lets you edit
rows in a grid, insert and delete rows, and create or drop tables.
Every change is committed as soon as it is made.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, closer, err := cfg.NewLogger(io.Discard)
			if err != nil {
				return err
			}
			defer closer.Close()

			sess := session.New(logger)
			defer sess.Close()

			opts := tui.Options{Dir: cfg.Dir, Logger: logger}
			if len(args) == 1 {
				opts.Path = args[0]
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger.WithField("dir", cfg.Dir).Info("starting")
			return runTUI(ctx, sess, opts)
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newTablesCmd(),
		newExportCmd(),
		newImportCmd(),
		newVersionCmd(),
	)
	return root
}

// withSession opens path for a one-shot command. Logs go to stderr unless a
// log file is configured.
func withSession(cmd *cobra.Command, path string, fn func(ctx context.Context, s *session.Session) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger, closer, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s := session.New(logger)
	if err := s.Open(ctx, path); err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.WithError(err).Warn("close database")
		}
	}()
	return fn(ctx, s)
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <file.db>",
		Short: "Print the tables of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args[0], func(_ context.Context, s *session.Session) error {
				for _, t := range s.Tables() {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.db> <table> <sheet-dir>",
		Short: "Write a table to an automerge sheet document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args[0], func(ctx context.Context, s *session.Session) error {
				rs, err := s.SelectTable(ctx, args[1])
				if err != nil {
					return err
				}
				if err := sheet.Export(rs, args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows from %s to %s\n", len(rs.Rows), args[1], args[2])
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "import <file.db> <sheet-dir>",
		Short: "Create a table from an automerge sheet document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				return errors.New("--table is required")
			}
			return withSession(cmd, args[0], func(ctx context.Context, s *session.Session) error {
				if err := sheet.Import(ctx, s, args[1], table); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s\n", args[1], table)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "name of the table to create")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

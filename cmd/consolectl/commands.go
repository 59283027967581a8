package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/itops-console/console-backend/idp"
	"github.com/itops-console/console-backend/idp/idpfactory"
	"github.com/itops-console/console-backend/shared/utils"
	v1 "github.com/itops-console/console-backend/v1"
	"github.com/itops-console/console-backend/v1/services"
	"github.com/itops-console/console-backend/v1/store"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds the lazily opened dependencies shared by every subcommand
type app struct {
	openDB      func() (*gorm.DB, error)
	newProvider func() (idp.DirectoryProvider, error)

	db *gorm.DB
}

func newApp() *app {
	return &app{
		openDB: func() (*gorm.DB, error) {
			return v1.ConnectGormDB(v1.NewDatabaseConfig())
		},
		newProvider: func() (idp.DirectoryProvider, error) {
			cfg, ok := idpfactory.ConfigFromEnv()
			if !ok {
				return nil, errors.New("directory sync is not configured: set GRAPH_CLIENT_ID")
			}
			return idpfactory.NewDirectoryProvider(cfg)
		},
	}
}

func (a *app) database() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("Failed to close database connection", "error", err)
		}
	}
}

// buildServices builds the consolidation and CSV services over the database
func (a *app) buildServices() (*services.ConsolidationService, *services.CSVService, error) {
	db, err := a.database()
	if err != nil {
		return nil, nil, err
	}
	gormStore := store.NewGormStore(db)
	consolidator := services.NewConsolidationService(gormStore,
		services.WithConcurrencyLimit(utils.GetEnvIntOrDefault("CONSOLIDATION_CONCURRENCY", 8)))
	return consolidator, services.NewCSVService(consolidator, gormStore), nil
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "consolectl",
		Short: "IT operations console maintenance tool",
		Long: `consolectl looks up consolidated users, exports and imports inventory
and triggers directory syncs against the console database.

Database and Graph settings are read from the same environment variables
as the console server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newUserCommand(a),
		newUsersCommand(a),
		newExportCommand(a),
		newImportDevicesCommand(a),
		newSyncCommand(a),
	)
	return rootCmd
}

func newUserCommand(a *app) *cobra.Command {
	var id, email string

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show the consolidated view of one user",
		Example: `  consolectl user --id 5f1c0d2e
  consolectl user --email ada@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			consolidator, _, err := a.buildServices()
			if err != nil {
				return err
			}
			user, err := consolidator.Consolidate(cmd.Context(), id, email)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user not found")
			}
			return writeJSON(cmd.OutOrStdout(), user)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email address")
	cmd.MarkFlagsOneRequired("id", "email")
	return cmd
}

func newUsersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List every consolidated user as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			consolidator, _, err := a.buildServices()
			if err != nil {
				return err
			}
			users, err := consolidator.ConsolidateAll(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), users)
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export consolidated users as CSV",
		Example: `  consolectl export > users.csv
  consolectl export --out users.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, csvService, err := a.buildServices()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			n, err := csvService.ExportConsolidatedUsers(cmd.Context(), w)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d users to %s\n", n, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportDevicesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-devices <file>",
		Short: "Import a manual device list from CSV",
		Long: `Import a manual device list from CSV. The header must contain
user_email and serial_number; device_name, device_type, model,
manufacturer and status are optional. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, csvService, err := a.buildServices()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			result, err := csvService.ImportManualDevices(cmd.Context(), r)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one directory sync from Microsoft Graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := a.newProvider()
			if err != nil {
				return err
			}
			db, err := a.database()
			if err != nil {
				return err
			}

			result, err := services.NewDirectorySyncService(provider, store.NewGormStore(db)).Sync(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

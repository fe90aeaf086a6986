package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/reputation/internal/config"
	"github.com/zulandar/reputation/internal/db"
	"github.com/zulandar/reputation/internal/identity"
	"github.com/zulandar/reputation/internal/record"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Storage management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the ledger storage",
		Long: `Prepares the configured store. For mysql this creates the Dolt database;
SQL backends are then migrated. Agents listed in the identity section are
registered with the configured identity source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s (backend %s)\n", configPath, cfg.Store.Backend)

	if cfg.Store.Backend == config.BackendMySQL {
		adminDB, err := db.ConnectAdmin(cfg.Store.Dolt.Host, cfg.Store.Dolt.Port)
		if err != nil {
			return fmt.Errorf("connect to Dolt at %s:%d: %w", cfg.Store.Dolt.Host, cfg.Store.Dolt.Port, err)
		}
		if err := db.CreateDatabase(adminDB, cfg.Store.Dolt.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Store.Dolt.Database)
	}

	e, err := openEnv(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if e.gormDB != nil {
		fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	}

	switch cfg.Identity.Source {
	case config.IdentitySQL:
		if err := db.SeedAgents(e.gormDB, cfg.Identity.Agents); err != nil {
			return err
		}
	case config.IdentityStore:
		for _, a := range cfg.Identity.Agents {
			owner, err := record.ParseIdentity(a.Owner)
			if err != nil {
				return fmt.Errorf("agent %d: %w", a.ID, err)
			}
			if err := identity.RegisterAgent(ctx, e.store, record.Agent{AgentID: a.ID, Owner: owner}); err != nil {
				return err
			}
		}
	}
	if cfg.Identity.Source != config.IdentityStatic {
		fmt.Fprintf(out, "Registered %d agents\n", len(cfg.Identity.Agents))
	}

	fmt.Fprintf(out, "\nLedger storage initialized (%s).\n", e.store.Name())
	return nil
}

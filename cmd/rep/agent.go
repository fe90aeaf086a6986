package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/reputation/internal/config"
	"github.com/zulandar/reputation/internal/db"
	"github.com/zulandar/reputation/internal/identity"
	"github.com/zulandar/reputation/internal/record"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Identity registry commands",
	}

	cmd.AddCommand(newAgentRegisterCmd())
	return cmd
}

func newAgentRegisterCmd() *cobra.Command {
	var (
		configPath string
		id         uint64
		owner      string
		tokenURI   string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register or update an agent",
		Long: `Writes an agent to the configured identity registry. Registering an
existing id replaces its owner. The static source is read-only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentRegister(cmd, configPath, id, owner, tokenURI)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().Uint64Var(&id, "id", 0, "agent id (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity, 64 hex characters (required)")
	cmd.Flags().StringVar(&tokenURI, "token-uri", "", "agent metadata URI (sql registry only)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func runAgentRegister(cmd *cobra.Command, configPath string, id uint64, owner, tokenURI string) error {
	ownerID, err := record.ParseIdentity(owner)
	if err != nil {
		return fmt.Errorf("--owner: %w", err)
	}

	ctx := context.Background()
	e, err := openEnv(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	switch e.cfg.Identity.Source {
	case config.IdentitySQL:
		err = db.SeedAgents(e.gormDB, []config.AgentConfig{{ID: id, Owner: ownerID.String(), TokenURI: tokenURI}})
	case config.IdentityStore:
		err = identity.RegisterAgent(ctx, e.store, record.Agent{AgentID: id, Owner: ownerID})
	default:
		err = errors.New("the static identity source is read-only; edit identity.agents in the config")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered agent %d (owner %s)\n", id, ownerID)
	return nil
}

package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newReputationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reputation",
		Short: "Reputation aggregate commands",
	}

	cmd.AddCommand(newReputationShowCmd())
	return cmd
}

func newReputationShowCmd() *cobra.Command {
	var (
		configPath string
		agent      uint64
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an agent's reputation aggregate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := openEnv(ctx, configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			rep, err := e.ledger.Reputation(ctx, agent)
			if err != nil {
				return err
			}
			printReputation(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().Uint64Var(&agent, "agent", 0, "agent id (required)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

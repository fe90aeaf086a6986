package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/reputation/internal/ledger"
	"github.com/zulandar/reputation/internal/record"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Issue feedback authorizations",
		Long: `Agent owners sign feedback authorizations offline. When
ledger.require_feedback_auth is set, submissions must carry one.`,
	}

	cmd.AddCommand(newAuthKeygenCmd())
	cmd.AddCommand(newAuthSignCmd())
	return cmd
}

func newAuthKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an owner key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed:  %s\n", hex.EncodeToString(priv.Seed()))
			fmt.Fprintf(out, "owner: %s\n", hex.EncodeToString(pub))
			return nil
		},
	}
}

func newAuthSignCmd() *cobra.Command {
	var (
		seed       string
		agent      uint64
		client     string
		indexLimit uint64
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a feedback authorization for a client",
		Long: `Prints a JSON feedback authorization letting --client submit feedback
about --agent at indices below --limit until the TTL runs out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseSeed(seed)
			if err != nil {
				return err
			}
			clientID, err := record.ParseIdentity(client)
			if err != nil {
				return fmt.Errorf("--client: %w", err)
			}
			expiry := time.Now().Add(ttl).Unix()

			auth := ledger.SignFeedbackAuth(key, agent, clientID, indexLimit, expiry)
			data, err := json.MarshalIndent(auth, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&seed, "seed", "", "owner ed25519 seed, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&agent, "agent", 0, "agent id (required)")
	cmd.Flags().StringVar(&client, "client", "", "client identity, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&indexLimit, "limit", 1, "feedback indices below this are allowed")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "how long the authorization is valid")
	cmd.MarkFlagRequired("seed")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("client")
	return cmd
}

func parseSeed(s string) (ed25519.PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != ed25519.SeedSize {
		return nil, fmt.Errorf("--seed: want %d hex-encoded bytes", ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(b), nil
}

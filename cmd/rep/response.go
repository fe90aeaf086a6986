package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/reputation/internal/ledger"
	"github.com/zulandar/reputation/internal/record"
)

func newResponseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "response",
		Short: "Respond to feedback and list response threads",
	}

	cmd.AddCommand(newResponseAppendCmd())
	cmd.AddCommand(newResponseListCmd())
	return cmd
}

func newResponseAppendCmd() *cobra.Command {
	var (
		configPath string
		as         string
		agent      uint64
		client     string
		index      uint64
		uri        string
		hash       string
	)

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append a response to a feedback item",
		Long:  "Anyone may respond, including to revoked feedback.",
		RunE: func(cmd *cobra.Command, args []string) error {
			responder, err := parseCaller(as)
			if err != nil {
				return err
			}
			clientID, err := record.ParseIdentity(client)
			if err != nil {
				return fmt.Errorf("--client: %w", err)
			}
			responseHash, err := record.ParseBytes32(hash)
			if err != nil {
				return fmt.Errorf("--hash: %w", err)
			}

			ctx := context.Background()
			e, err := openEnv(ctx, configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := e.ledger.Respond(ctx, ledger.AppendResponse{
				AgentID:       agent,
				ClientID:      clientID,
				FeedbackIndex: index,
				ResponseURI:   uri,
				ResponseHash:  responseHash,
				Responder:     responder,
			})
			if err != nil {
				return fmt.Errorf("append response: %w", err)
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&as, "as", "", "responder identity, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&agent, "agent", 0, "agent id (required)")
	cmd.Flags().StringVar(&client, "client", "", "feedback author, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&index, "index", 0, "feedback index (required)")
	cmd.Flags().StringVar(&uri, "uri", "", "URI of the response")
	cmd.Flags().StringVar(&hash, "hash", "", "hash of the response, 64 hex characters")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("client")
	cmd.MarkFlagRequired("index")
	return cmd
}

func newResponseListCmd() *cobra.Command {
	var (
		configPath string
		agent      uint64
		client     string
		index      uint64
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the responses to a feedback item",
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := record.ParseIdentity(client)
			if err != nil {
				return fmt.Errorf("--client: %w", err)
			}
			ctx := context.Background()
			e, err := openEnv(ctx, configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			responses, err := e.ledger.Responses(ctx, agent, clientID, index)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(responses) == 0 {
				fmt.Fprintln(out, "No responses.")
				return nil
			}
			for _, r := range responses {
				printResponse(out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().Uint64Var(&agent, "agent", 0, "agent id (required)")
	cmd.Flags().StringVar(&client, "client", "", "feedback author, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&index, "index", 0, "feedback index (required)")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("client")
	cmd.MarkFlagRequired("index")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zulandar/reputation/internal/ledger"
	"github.com/zulandar/reputation/internal/record"
)

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Submit, revoke and inspect feedback",
	}

	cmd.AddCommand(newFeedbackSubmitCmd())
	cmd.AddCommand(newFeedbackRevokeCmd())
	cmd.AddCommand(newFeedbackShowCmd())
	return cmd
}

type submitFlags struct {
	configPath string
	as         string
	agent      uint64
	index      int64
	score      int
	tag1       string
	tag2       string
	fileURI    string
	fileHash   string
	authPath   string
}

func newFeedbackSubmitCmd() *cobra.Command {
	var f submitFlags

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit feedback about an agent",
		Long: `Records a score between 0 and 100 from the --as client. Without --index
the client's next index is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedbackSubmit(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&f.as, "as", "", "caller identity, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&f.agent, "agent", 0, "agent id (required)")
	cmd.Flags().Int64Var(&f.index, "index", -1, "feedback index (default: next index)")
	cmd.Flags().IntVar(&f.score, "score", 0, "score, 0 to 100 (required)")
	cmd.Flags().StringVar(&f.tag1, "tag1", "", "first tag, 64 hex characters")
	cmd.Flags().StringVar(&f.tag2, "tag2", "", "second tag, 64 hex characters")
	cmd.Flags().StringVar(&f.fileURI, "uri", "", "URI of the feedback file")
	cmd.Flags().StringVar(&f.fileHash, "hash", "", "hash of the feedback file, 64 hex characters")
	cmd.Flags().StringVar(&f.authPath, "auth", "", "path to a JSON feedback authorization from 'rep auth sign'")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("score")
	return cmd
}

func runFeedbackSubmit(cmd *cobra.Command, f submitFlags) error {
	caller, err := parseCaller(f.as)
	if err != nil {
		return err
	}
	req := ledger.SubmitFeedback{
		AgentID:  f.agent,
		ClientID: caller,
		Score:    f.score,
		FileURI:  f.fileURI,
	}
	if req.Tag1, err = record.ParseBytes32(f.tag1); err != nil {
		return fmt.Errorf("--tag1: %w", err)
	}
	if req.Tag2, err = record.ParseBytes32(f.tag2); err != nil {
		return fmt.Errorf("--tag2: %w", err)
	}
	if req.FileHash, err = record.ParseBytes32(f.fileHash); err != nil {
		return fmt.Errorf("--hash: %w", err)
	}
	if f.authPath != "" {
		auth, err := readFeedbackAuth(f.authPath)
		if err != nil {
			return err
		}
		req.Auth = auth
	}

	ctx := context.Background()
	e, err := openEnv(ctx, f.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if f.index < 0 {
		next, err := e.ledger.NextFeedbackIndex(ctx, f.agent, caller)
		if err != nil {
			return err
		}
		req.FeedbackIndex = next
	} else {
		req.FeedbackIndex = uint64(f.index)
	}

	fb, err := e.ledger.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	printFeedback(cmd.OutOrStdout(), fb)
	return nil
}

func readFeedbackAuth(path string) (*ledger.FeedbackAuth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read auth %s: %w", path, err)
	}
	var auth ledger.FeedbackAuth
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("parse auth %s: %w", path, err)
	}
	return &auth, nil
}

func newFeedbackRevokeCmd() *cobra.Command {
	var (
		configPath string
		as         string
		agent      uint64
		index      uint64
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke feedback you submitted",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := parseCaller(as)
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := openEnv(ctx, configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			fb, err := e.ledger.Revoke(ctx, ledger.RevokeFeedback{
				AgentID:       agent,
				ClientID:      caller,
				FeedbackIndex: index,
				Caller:        caller,
			})
			if err != nil {
				return fmt.Errorf("revoke feedback: %w", err)
			}
			printFeedback(cmd.OutOrStdout(), fb)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&as, "as", "", "caller identity, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&agent, "agent", 0, "agent id (required)")
	cmd.Flags().Uint64Var(&index, "index", 0, "feedback index (required)")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("index")
	return cmd
}

func newFeedbackShowCmd() *cobra.Command {
	var (
		configPath string
		agent      uint64
		client     string
		index      uint64
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one feedback item and its responses",
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

			fb, err := e.ledger.Feedback(ctx, agent, clientID, index)
			if err != nil {
				return err
			}
			responses, err := e.ledger.Responses(ctx, agent, clientID, index)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printFeedback(out, fb)
			fmt.Fprintf(out, "  Responses: %d\n", len(responses))
			for _, r := range responses {
				fmt.Fprint(out, "    ")
				printResponse(out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().Uint64Var(&agent, "agent", 0, "agent id (required)")
	cmd.Flags().StringVar(&client, "client", "", "client identity, 64 hex characters (required)")
	cmd.Flags().Uint64Var(&index, "index", 0, "feedback index (required)")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("client")
	cmd.MarkFlagRequired("index")
	return cmd
}

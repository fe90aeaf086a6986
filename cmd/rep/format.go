package main

import (
	"fmt"
	"io"
	"time"

	"github.com/zulandar/reputation/internal/record"
)

// formatTime renders a ledger timestamp (Unix seconds) in UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func printFeedback(w io.Writer, fb record.Feedback) {
	status := "active"
	if fb.IsRevoked {
		status = "revoked"
	}
	fmt.Fprintf(w, "Feedback %d/%s/%d\n", fb.AgentID, fb.ClientID, fb.FeedbackIndex)
	fmt.Fprintf(w, "  Score:    %d\n", fb.Score)
	fmt.Fprintf(w, "  Status:   %s\n", status)
	if fb.Tag1 != (record.Bytes32{}) {
		fmt.Fprintf(w, "  Tag1:     %s\n", fb.Tag1)
	}
	if fb.Tag2 != (record.Bytes32{}) {
		fmt.Fprintf(w, "  Tag2:     %s\n", fb.Tag2)
	}
	if fb.FileURI != "" {
		fmt.Fprintf(w, "  File:     %s\n", fb.FileURI)
	}
	if fb.FileHash != (record.Bytes32{}) {
		fmt.Fprintf(w, "  Hash:     %s\n", fb.FileHash)
	}
	fmt.Fprintf(w, "  Created:  %s\n", formatTime(fb.CreatedAt))
}

func printResponse(w io.Writer, r record.Response) {
	fmt.Fprintf(w, "#%d  %s  by %s  %s\n", r.ResponseIndex, formatTime(r.CreatedAt), r.Responder, r.ResponseURI)
}

func printReputation(w io.Writer, rep record.Reputation) {
	fmt.Fprintf(w, "Agent %d\n", rep.AgentID)
	fmt.Fprintf(w, "  Feedbacks: %d\n", rep.TotalFeedbacks)
	fmt.Fprintf(w, "  Score sum: %d\n", rep.TotalScoreSum)
	fmt.Fprintf(w, "  Average:   %d\n", rep.AverageScore)
	if rep.LastUpdated != 0 {
		fmt.Fprintf(w, "  Updated:   %s\n", formatTime(rep.LastUpdated))
	}
}

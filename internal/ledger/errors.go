package ledger

import (
	"errors"
	"fmt"

	"github.com/zulandar/reputation/internal/store"
)

var (
	ErrAgentNotFound     = errors.New("agent not found in identity registry")
	ErrInvalidScore      = errors.New("score must be between 0 and 100")
	ErrURITooLong        = errors.New("uri exceeds maximum length of 200 bytes")
	ErrWrongIndex        = errors.New("feedback index is not the next index")
	ErrDuplicateFeedback = errors.New("feedback already exists at index")
	ErrUnauthorized      = errors.New("only the feedback author can revoke")
	ErrAlreadyRevoked    = errors.New("feedback already revoked")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrUnderflow         = errors.New("arithmetic underflow")
	ErrNotFound          = errors.New("feedback not found")

	// ErrResponseURITooLong is the response-side ErrURITooLong; errors.Is
	// matches both.
	ErrResponseURITooLong = fmt.Errorf("response %w", ErrURITooLong)
	// ErrResponseNotFound is returned for a response index past the end of
	// a thread.
	ErrResponseNotFound = errors.New("response not found")

	ErrFeedbackAuthRequired         = errors.New("feedback authorization required")
	ErrFeedbackAuthClientMismatch   = errors.New("feedback authorization client does not match caller")
	ErrFeedbackAuthExpired          = errors.New("feedback authorization expired")
	ErrFeedbackAuthIndexLimit       = errors.New("feedback authorization index limit exceeded")
	ErrUnauthorizedSigner           = errors.New("feedback authorization signer is not the agent owner")
	ErrInvalidFeedbackAuthSignature = errors.New("feedback authorization signature invalid")
)

var codes = []struct {
	err  error
	code string
}{
	// Specific before general: ErrResponseURITooLong wraps ErrURITooLong.
	{ErrResponseURITooLong, "response_uri_too_long"},
	{ErrResponseNotFound, "response_not_found"},
	{ErrAgentNotFound, "agent_not_found"},
	{ErrInvalidScore, "invalid_score"},
	{ErrURITooLong, "uri_too_long"},
	{ErrWrongIndex, "wrong_index"},
	{ErrDuplicateFeedback, "duplicate_feedback"},
	{ErrUnauthorized, "unauthorized"},
	{ErrAlreadyRevoked, "already_revoked"},
	{ErrOverflow, "overflow"},
	{ErrUnderflow, "underflow"},
	{ErrNotFound, "not_found"},
	{ErrFeedbackAuthRequired, "feedback_auth_required"},
	{ErrFeedbackAuthClientMismatch, "feedback_auth_client_mismatch"},
	{ErrFeedbackAuthExpired, "feedback_auth_expired"},
	{ErrFeedbackAuthIndexLimit, "feedback_auth_index_limit_exceeded"},
	{ErrUnauthorizedSigner, "unauthorized_signer"},
	{ErrInvalidFeedbackAuthSignature, "invalid_feedback_auth_signature"},
	{store.ErrConflict, "conflict"},
}

// Code returns a stable machine-readable code for err, "ok" for nil and
// "internal" for anything the ledger does not define.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zulandar/reputation/internal/identity"
	"github.com/zulandar/reputation/internal/record"
)

// authDomain prefixes the signed bytes so a FeedbackAuth signature cannot
// be replayed as any other ed25519 message.
const authDomain = "reputation.feedback_auth.v1"

// Signature is an ed25519 signature, hex in text form.
type Signature [ed25519.SignatureSize]byte

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s[:])), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	var tmp Signature
	n, err := hex.Decode(tmp[:], text)
	if err != nil {
		return fmt.Errorf("ledger: signature: %w", err)
	}
	if n != len(tmp) || len(text) != 2*len(tmp) {
		return fmt.Errorf("ledger: signature: want %d hex characters, got %d", 2*len(tmp), len(text))
	}
	*s = tmp
	return nil
}

// FeedbackAuth is an agent owner's permission for one client to submit
// feedback below IndexLimit until Expiry (Unix seconds). Signer is the
// owner's ed25519 public key.
type FeedbackAuth struct {
	AgentID    uint64          `json:"agent_id"`
	ClientID   record.Identity `json:"client_id"`
	IndexLimit uint64          `json:"index_limit"`
	Expiry     int64           `json:"expiry"`
	Signer     record.Identity `json:"signer"`
	Signature  Signature       `json:"signature"`
}

// SigningBytes is the canonical message the owner signs.
func (a FeedbackAuth) SigningBytes() []byte {
	buf := make([]byte, 0, len(authDomain)+8+32+8+8+32)
	buf = append(buf, authDomain...)
	buf = binary.LittleEndian.AppendUint64(buf, a.AgentID)
	buf = append(buf, a.ClientID[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, a.IndexLimit)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(a.Expiry))
	buf = append(buf, a.Signer[:]...)
	return buf
}

// SignFeedbackAuth issues a FeedbackAuth signed with the owner's key.
func SignFeedbackAuth(key ed25519.PrivateKey, agentID uint64, client record.Identity, indexLimit uint64, expiry int64) FeedbackAuth {
	a := FeedbackAuth{
		AgentID:    agentID,
		ClientID:   client,
		IndexLimit: indexLimit,
		Expiry:     expiry,
	}
	copy(a.Signer[:], key.Public().(ed25519.PublicKey))
	copy(a.Signature[:], ed25519.Sign(key, a.SigningBytes()))
	return a
}

// verifyAuth checks auth against a submission, in a fixed order so each
// failure has one error.
func (l *Ledger) verifyAuth(ctx context.Context, req SubmitFeedback, now int64) error {
	auth := req.Auth
	if auth == nil {
		return ErrFeedbackAuthRequired
	}
	if auth.ClientID != req.ClientID {
		return ErrFeedbackAuthClientMismatch
	}
	if now >= auth.Expiry {
		return fmt.Errorf("%w: at %d", ErrFeedbackAuthExpired, auth.Expiry)
	}
	if req.FeedbackIndex >= auth.IndexLimit {
		return fmt.Errorf("%w: index %d, limit %d", ErrFeedbackAuthIndexLimit, req.FeedbackIndex, auth.IndexLimit)
	}
	owner, err := l.oracle.AgentOwner(ctx, req.AgentID)
	if errors.Is(err, identity.ErrUnknownAgent) {
		return ErrAgentNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger: agent owner: %w", err)
	}
	if auth.Signer != owner {
		return ErrUnauthorizedSigner
	}
	// The message is rebuilt from the request's agent so an authorization
	// issued for another agent fails here.
	msg := *auth
	msg.AgentID = req.AgentID
	if !ed25519.Verify(ed25519.PublicKey(auth.Signer[:]), msg.SigningBytes(), auth.Signature[:]) {
		return ErrInvalidFeedbackAuthSignature
	}
	return nil
}

// Package address derives flat storage keys for ledger records.
//
// A key is one kind byte followed by the 32-byte BLAKE3 keyed hash of the
// record's seeds. Each kind hashes under its own domain key, so identical
// seed bytes in different kinds never collide. Seeds are fixed width (u64
// little-endian, 32-byte identities), which makes plain concatenation
// unambiguous. Together these emulate agent -> client -> index nested maps on
// a substrate that only offers a flat key space.
package address

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/zulandar/reputation/internal/record"
)

// Kind identifies the record type stored at a key.
type Kind byte

const (
	KindAgent Kind = iota + 1
	KindClientIndex
	KindFeedback
	KindReputation
	KindResponseIndex
	KindResponse
)

// KeyLen is the length of every derived key.
const KeyLen = 1 + 32

// Key is a derived storage key.
type Key [KeyLen]byte

func (k Key) Kind() Kind { return Kind(k[0]) }

func (k Key) Bytes() []byte { return k[:] }

func (k Key) String() string { return hex.EncodeToString(k[:]) }

func (k Kind) String() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindClientIndex:
		return "client_index"
	case KindFeedback:
		return "feedback"
	case KindReputation:
		return "reputation"
	case KindResponseIndex:
		return "response_index"
	case KindResponse:
		return "response"
	}
	return "unknown"
}

// domainKeys are ASCII names zero-padded to 32 bytes. Changing one moves
// every record of that kind.
var domainKeys = map[Kind][32]byte{
	KindAgent:         domain("reputation.agent"),
	KindClientIndex:   domain("reputation.client_index"),
	KindFeedback:      domain("reputation.feedback"),
	KindReputation:    domain("reputation.agent_reputation"),
	KindResponseIndex: domain("reputation.response_index"),
	KindResponse:      domain("reputation.response"),
}

func domain(name string) [32]byte {
	var k [32]byte
	copy(k[:], name)
	return k
}

// Derive hashes seeds under kind's domain key.
func Derive(kind Kind, seeds ...[]byte) Key {
	dk, ok := domainKeys[kind]
	if !ok {
		panic("address: unknown kind " + kind.String())
	}
	h, err := blake3.NewKeyed(dk[:])
	if err != nil {
		panic("address: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, s := range seeds {
		h.Write(s)
	}
	var key Key
	key[0] = byte(kind)
	copy(key[1:], h.Sum(nil))
	return key
}

func u64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// Agent addresses the identity registry's record for agentID.
func Agent(agentID uint64) Key {
	return Derive(KindAgent, u64(agentID))
}

// ClientIndex addresses the (agent, client) feedback counter.
func ClientIndex(agentID uint64, client record.Identity) Key {
	return Derive(KindClientIndex, u64(agentID), client[:])
}

// Feedback addresses one feedback item.
func Feedback(agentID uint64, client record.Identity, index uint64) Key {
	return Derive(KindFeedback, u64(agentID), client[:], u64(index))
}

// Reputation addresses an agent's aggregate.
func Reputation(agentID uint64) Key {
	return Derive(KindReputation, u64(agentID))
}

// ResponseIndex addresses the response counter of one feedback item.
func ResponseIndex(agentID uint64, client record.Identity, feedbackIndex uint64) Key {
	return Derive(KindResponseIndex, u64(agentID), client[:], u64(feedbackIndex))
}

// Response addresses one response in a feedback item's thread.
func Response(agentID uint64, client record.Identity, feedbackIndex, responseIndex uint64) Key {
	return Derive(KindResponse, u64(agentID), client[:], u64(feedbackIndex), u64(responseIndex))
}

// Package record defines the ledger's persistent records and their
// bit-exact binary layout.
//
// Every record encodes its fields in declaration order: integers are
// little-endian, identities, tags and hashes are 32 raw bytes, booleans are a
// single 0/1 byte and strings are a u32 little-endian length followed by the
// bytes. There is no padding and no type discriminator; the storage address
// identifies the record kind.
package record

// MaxURILength is the maximum length in bytes of file and response URIs.
const MaxURILength = 200

// ClientIndex tracks the next unused feedback index for one (agent, client)
// pair.
type ClientIndex struct {
	AgentID   uint64   `json:"agent_id"`
	ClientID  Identity `json:"client_id"`
	NextIndex uint64   `json:"next_index"`
}

// Feedback is one scored feedback item. Only IsRevoked changes after
// creation, and only from false to true.
type Feedback struct {
	AgentID       uint64   `json:"agent_id"`
	ClientID      Identity `json:"client_id"`
	FeedbackIndex uint64   `json:"feedback_index"`
	Score         uint8    `json:"score"`
	Tag1          Bytes32  `json:"tag1"`
	Tag2          Bytes32  `json:"tag2"`
	FileURI       string   `json:"file_uri"`
	FileHash      Bytes32  `json:"file_hash"`
	IsRevoked     bool     `json:"is_revoked"`
	CreatedAt     int64    `json:"created_at"`
}

// Reputation is the cached aggregate of an agent's non-revoked feedback.
type Reputation struct {
	AgentID        uint64 `json:"agent_id"`
	TotalFeedbacks uint64 `json:"total_feedbacks"`
	TotalScoreSum  uint64 `json:"total_score_sum"`
	AverageScore   uint8  `json:"average_score"`
	LastUpdated    int64  `json:"last_updated"`
}

// ResponseIndex tracks the next unused response index for one feedback item.
type ResponseIndex struct {
	AgentID       uint64   `json:"agent_id"`
	ClientID      Identity `json:"client_id"`
	FeedbackIndex uint64   `json:"feedback_index"`
	NextIndex     uint64   `json:"next_index"`
}

// Response is one entry in a feedback item's response thread.
type Response struct {
	AgentID       uint64   `json:"agent_id"`
	ClientID      Identity `json:"client_id"`
	FeedbackIndex uint64   `json:"feedback_index"`
	ResponseIndex uint64   `json:"response_index"`
	Responder     Identity `json:"responder"`
	ResponseURI   string   `json:"response_uri"`
	ResponseHash  Bytes32  `json:"response_hash"`
	CreatedAt     int64    `json:"created_at"`
}

// Agent is the identity registry's record for a registered agent. The ledger
// only reads it.
type Agent struct {
	AgentID uint64   `json:"agent_id"`
	Owner   Identity `json:"owner"`
}

func (r ClientIndex) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(r.AgentID)
	e.fixed(r.ClientID)
	e.u64(r.NextIndex)
	return e.finish()
}

func (r *ClientIndex) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.AgentID = d.u64()
	r.ClientID = d.fixed()
	r.NextIndex = d.u64()
	return d.finish("client index")
}

func (r Feedback) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(r.AgentID)
	e.fixed(r.ClientID)
	e.u64(r.FeedbackIndex)
	e.u8(r.Score)
	e.fixed(r.Tag1)
	e.fixed(r.Tag2)
	e.str(r.FileURI)
	e.fixed(r.FileHash)
	e.bool(r.IsRevoked)
	e.i64(r.CreatedAt)
	return e.finish()
}

func (r *Feedback) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.AgentID = d.u64()
	r.ClientID = d.fixed()
	r.FeedbackIndex = d.u64()
	r.Score = d.u8()
	r.Tag1 = d.fixed()
	r.Tag2 = d.fixed()
	r.FileURI = d.str()
	r.FileHash = d.fixed()
	r.IsRevoked = d.bool()
	r.CreatedAt = d.i64()
	return d.finish("feedback")
}

func (r Reputation) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(r.AgentID)
	e.u64(r.TotalFeedbacks)
	e.u64(r.TotalScoreSum)
	e.u8(r.AverageScore)
	e.i64(r.LastUpdated)
	return e.finish()
}

func (r *Reputation) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.AgentID = d.u64()
	r.TotalFeedbacks = d.u64()
	r.TotalScoreSum = d.u64()
	r.AverageScore = d.u8()
	r.LastUpdated = d.i64()
	return d.finish("reputation")
}

func (r ResponseIndex) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(r.AgentID)
	e.fixed(r.ClientID)
	e.u64(r.FeedbackIndex)
	e.u64(r.NextIndex)
	return e.finish()
}

func (r *ResponseIndex) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.AgentID = d.u64()
	r.ClientID = d.fixed()
	r.FeedbackIndex = d.u64()
	r.NextIndex = d.u64()
	return d.finish("response index")
}

func (r Response) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(r.AgentID)
	e.fixed(r.ClientID)
	e.u64(r.FeedbackIndex)
	e.u64(r.ResponseIndex)
	e.fixed(r.Responder)
	e.str(r.ResponseURI)
	e.fixed(r.ResponseHash)
	e.i64(r.CreatedAt)
	return e.finish()
}

func (r *Response) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.AgentID = d.u64()
	r.ClientID = d.fixed()
	r.FeedbackIndex = d.u64()
	r.ResponseIndex = d.u64()
	r.Responder = d.fixed()
	r.ResponseURI = d.str()
	r.ResponseHash = d.fixed()
	r.CreatedAt = d.i64()
	return d.finish("response")
}

func (r Agent) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(r.AgentID)
	e.fixed(r.Owner)
	return e.finish()
}

func (r *Agent) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.AgentID = d.u64()
	r.Owner = d.fixed()
	return d.finish("agent")
}

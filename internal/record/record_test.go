package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func testIdentity(b byte) Identity {
	var id Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func TestFeedback_Layout(t *testing.T) {
	fb := Feedback{
		AgentID:       7,
		ClientID:      testIdentity(0xcc),
		FeedbackIndex: 3,
		Score:         80,
		Tag1:          Bytes32{1},
		Tag2:          Bytes32{2},
		FileURI:       "ipfs://x",
		FileHash:      Bytes32{9},
		IsRevoked:     true,
		CreatedAt:     1700000000,
	}
	data, err := fb.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	want := 8 + 32 + 8 + 1 + 32 + 32 + 4 + len("ipfs://x") + 32 + 1 + 8
	if len(data) != want {
		t.Fatalf("len = %d, want %d", len(data), want)
	}
	if got := binary.LittleEndian.Uint64(data[0:8]); got != 7 {
		t.Errorf("agent_id = %d, want 7", got)
	}
	if !bytes.Equal(data[8:40], bytes.Repeat([]byte{0xcc}, 32)) {
		t.Errorf("client_id bytes wrong: %x", data[8:40])
	}
	if got := binary.LittleEndian.Uint64(data[40:48]); got != 3 {
		t.Errorf("feedback_index = %d, want 3", got)
	}
	if data[48] != 80 {
		t.Errorf("score = %d, want 80", data[48])
	}
	if data[49] != 1 || data[81] != 2 {
		t.Errorf("tags at wrong offsets: tag1[0]=%d tag2[0]=%d", data[49], data[81])
	}
	if got := binary.LittleEndian.Uint32(data[113:117]); got != 8 {
		t.Errorf("uri length prefix = %d, want 8", got)
	}
	if string(data[117:125]) != "ipfs://x" {
		t.Errorf("uri = %q", data[117:125])
	}
	if data[125] != 9 {
		t.Errorf("file_hash[0] = %d, want 9", data[125])
	}
	if data[157] != 1 {
		t.Errorf("is_revoked = %d, want 1", data[157])
	}
	if got := int64(binary.LittleEndian.Uint64(data[158:166])); got != 1700000000 {
		t.Errorf("created_at = %d", got)
	}

	var decoded Feedback
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if decoded != fb {
		t.Errorf("decoded = %+v, want %+v", decoded, fb)
	}
}

func TestReputation_Layout(t *testing.T) {
	rep := Reputation{AgentID: 1, TotalFeedbacks: 2, TotalScoreSum: 180, AverageScore: 90, LastUpdated: -5}
	data, err := rep.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != 8+8+8+1+8 {
		t.Fatalf("len = %d, want 33", len(data))
	}
	if data[24] != 90 {
		t.Errorf("average_score byte = %d, want 90", data[24])
	}

	var decoded Reputation
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if decoded != rep {
		t.Errorf("decoded = %+v, want %+v", decoded, rep)
	}
}

func TestRecordSizes(t *testing.T) {
	tests := []struct {
		name string
		rec  interface{ MarshalBinary() ([]byte, error) }
		want int
	}{
		{"client index", ClientIndex{}, 8 + 32 + 8},
		{"response index", ResponseIndex{}, 8 + 32 + 8 + 8},
		{"response", Response{ResponseURI: "ab"}, 8 + 32 + 8 + 8 + 32 + 4 + 2 + 32 + 8},
		{"agent", Agent{}, 8 + 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.rec.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			if len(data) != tt.want {
				t.Errorf("len = %d, want %d", len(data), tt.want)
			}
		})
	}
}

func TestMarshal_URITooLong(t *testing.T) {
	fb := Feedback{FileURI: strings.Repeat("a", MaxURILength+1)}
	if _, err := fb.MarshalBinary(); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("err = %v, want ErrStringTooLong", err)
	}

	fb.FileURI = strings.Repeat("a", MaxURILength)
	if _, err := fb.MarshalBinary(); err != nil {
		t.Errorf("200-byte uri rejected: %v", err)
	}
}

func TestUnmarshal_Rejects(t *testing.T) {
	valid, err := Response{ResponseURI: "u"}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var r Response
	if err := r.UnmarshalBinary(valid[:len(valid)-1]); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated: err = %v", err)
	}
	if err := r.UnmarshalBinary(append(append([]byte{}, valid...), 0)); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("trailing: err = %v", err)
	}

	fbData, _ := Feedback{}.MarshalBinary()
	fbData[len(fbData)-9] = 2 // is_revoked byte
	var fb Feedback
	if err := fb.UnmarshalBinary(fbData); !errors.Is(err, ErrInvalidBool) {
		t.Errorf("bad bool: err = %v", err)
	}

	long := make([]byte, 0, 64)
	long = binary.LittleEndian.AppendUint64(long, 1)
	long = append(long, make([]byte, 32+8+8+32)...)
	long = binary.LittleEndian.AppendUint32(long, MaxURILength+1)
	if err := r.UnmarshalBinary(long); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("long prefix: err = %v", err)
	}
}

func TestParseIdentity(t *testing.T) {
	id := testIdentity(0xab)
	parsed, err := ParseIdentity(id.String())
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if parsed != id {
		t.Errorf("parsed = %s, want %s", parsed, id)
	}

	for _, bad := range []string{"", "abc", strings.Repeat("zz", 32)} {
		if _, err := ParseIdentity(bad); err == nil {
			t.Errorf("ParseIdentity(%q) succeeded, want error", bad)
		}
	}
}

func TestParseBytes32_EmptyIsZero(t *testing.T) {
	b, err := ParseBytes32("")
	if err != nil {
		t.Fatalf("ParseBytes32: %v", err)
	}
	if b != (Bytes32{}) {
		t.Errorf("got %s, want zero", b)
	}
}

func TestIdentity_TextRoundTrip(t *testing.T) {
	id := testIdentity(0x01)
	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var got Identity
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got != id {
		t.Errorf("got %s, want %s", got, id)
	}
	if !(Identity{}).IsZero() || id.IsZero() {
		t.Error("IsZero wrong")
	}
}

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestCountJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Count
		want string
	}{
		{"known", KnownCount(12300), `12300`},
		{"zero", KnownCount(0), `0`},
		{"unknown", UnknownCount(), `"Likes not found"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("marshal = %s, want %s", data, tt.want)
			}

			var back Count
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tt.in {
				t.Errorf("round trip = %+v, want %+v", back, tt.in)
			}
		})
	}
}

func TestCountUnmarshalNull(t *testing.T) {
	c := KnownCount(5)
	if err := json.Unmarshal([]byte(`null`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Known {
		t.Errorf("expected unknown count after null, got %+v", c)
	}
}

func TestNewHarvestNeverNilComments(t *testing.T) {
	h := NewHarvest(NewVideoRecord(""), nil)
	if h.Comments == nil {
		t.Fatal("expected non-nil comments")
	}
	data, _ := json.Marshal(h)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(raw["comments"]) != "[]" {
		t.Errorf("comments = %s, want []", raw["comments"])
	}
	if _, ok := raw["video_info"]; !ok {
		t.Error("missing video_info key")
	}
}

func TestDocumentErrorIsUnavailable(t *testing.T) {
	cause := errors.New("websocket closed")
	err := fmt.Errorf("harvest: %w", &DocumentError{Op: "query", Err: cause})

	if !IsDocumentUnavailable(err) {
		t.Error("expected DocumentError to match ErrDocumentUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("expected DocumentError to unwrap to its cause")
	}
	if IsDocumentUnavailable(&ParseError{Text: "abc", Err: cause}) {
		t.Error("ParseError must not be treated as unavailable")
	}
}

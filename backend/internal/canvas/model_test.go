package canvas

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestStroke_JSONKeepsZeroFields(t *testing.T) {
	b, err := json.Marshal(Stroke{ID: "s1", AuthorID: "p1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"id": "s1", "authorId": "p1", "tool": "", "color": "",
		"width": 0.0, "fill": false, "points": nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestStroke_JSONRoundTrip(t *testing.T) {
	in := Stroke{ID: "s1", AuthorID: "p1", Tool: "eraser", Color: "", Width: 0, Points: []Point{{X: 0, Y: 0}}}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Stroke
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed stroke: %+v -> %+v", in, out)
	}
}

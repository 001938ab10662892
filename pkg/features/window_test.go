package features_test

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/grexie/matchnet/pkg/features"
)

func TestWindowJSON(t *testing.T) {
	data, err := json.Marshal(features.Window{Subject: 101, Activity: 4, Index: 7, Features: []float64{0.5, -1}})
	if err != nil {
		t.Fatalf("error marshalling window: %v", err)
	}
	if string(data) != `[101,4,7,[0.5,-1]]` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var w features.Window
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("error unmarshalling window: %v", err)
	}
	if w.Subject != 101 || w.Activity != 4 || w.Index != 7 || !slices.Equal(w.Features, []float64{0.5, -1}) {
		t.Fatalf("unexpected window %+v", w)
	}

	if err := json.Unmarshal([]byte(`[1,2]`), &w); err == nil {
		t.Fatalf("expected an error for a short array")
	}
}

package features

import (
	"encoding/json"
	"fmt"
)

// Window is a single cached feature vector.
type Window struct {
	Subject  int
	Activity int
	Index    int
	Features []float64
}

// Marshal to an array
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{w.Subject, w.Activity, w.Index, w.Features})
}

// Unmarshal from an array
func (w *Window) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 4 {
		return fmt.Errorf("invalid window data: expected 4 elements, got %d", len(arr))
	}

	if err := json.Unmarshal(arr[0], &w.Subject); err != nil {
		return err
	} else if err := json.Unmarshal(arr[1], &w.Activity); err != nil {
		return err
	} else if err := json.Unmarshal(arr[2], &w.Index); err != nil {
		return err
	} else if err := json.Unmarshal(arr[3], &w.Features); err != nil {
		return err
	}
	return nil
}

package store

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestStatusFieldsRoundTrip(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	end := start.Add(42 * time.Second)
	in := Status{
		Status:   StateFailed,
		Progress: 60,
		Message:  "marker not found",
		Kind:     "MarkerNotFoundError",
		Start:    &start,
		End:      &end,
		Metadata: map[string]any{"attempt": float64(2)},
	}

	hash := map[string]string{}
	for k, v := range fields(in) {
		hash[k] = fmt.Sprint(v)
	}
	got := parse(hash)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("parse(fields) = %+v, want %+v", got, in)
	}
	if !got.Final() {
		t.Error("failed status is final")
	}
	if (Status{Status: StateRetrying}).Final() {
		t.Error("retrying status is not final")
	}
}

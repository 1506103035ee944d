package audit

import (
	"reflect"
	"testing"
)

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous map[string]any
		current  map[string]any
		want     map[string]map[string]any
	}{
		{
			name:     "changed field",
			previous: map[string]any{"status": "draft", "title": "Same"},
			current:  map[string]any{"status": "submitted", "title": "Same"},
			want:     map[string]map[string]any{"status": {"old": "draft", "new": "submitted"}},
		},
		{
			name:     "removed field",
			previous: map[string]any{"abstract": "old text"},
			current:  map[string]any{},
			want:     map[string]map[string]any{"abstract": {"old": "old text", "new": nil}},
		},
		{
			name:     "added field",
			previous: map[string]any{},
			current:  map[string]any{"keywords": []any{"mesh"}},
			want:     map[string]map[string]any{"keywords": {"old": nil, "new": []any{"mesh"}}},
		},
		{
			name:     "nested values compared deeply",
			previous: map[string]any{"meta": map[string]any{"pages": float64(10)}},
			current:  map[string]any{"meta": map[string]any{"pages": float64(12)}},
			want: map[string]map[string]any{"meta": {
				"old": map[string]any{"pages": float64(10)},
				"new": map[string]any{"pages": float64(12)},
			}},
		},
		{
			name:     "identical snapshots",
			previous: map[string]any{"status": "draft"},
			current:  map[string]any{"status": "draft"},
			want:     map[string]map[string]any{},
		},
		{
			name: "nil snapshots",
			want: map[string]map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeDiff(tt.previous, tt.current)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("computeDiff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActorOf(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "actor_id wins",
			payload: map[string]any{"actor_id": "a-1", "user_id": "u-1", "owner_id": "o-1"},
			want:    "a-1",
		},
		{
			name:    "falls through to owner",
			payload: map[string]any{"owner_id": "o-1", "storage_key": "k"},
			want:    "o-1",
		},
		{
			name:    "non-string values skipped",
			payload: map[string]any{"user_id": float64(7), "decided_by": "ed-1"},
			want:    "ed-1",
		},
		{name: "no actor", payload: map[string]any{"state": "succeeded"}, want: "system"},
		{name: "empty payload", payload: map[string]any{}, want: "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actorOf(tt.payload); got != tt.want {
				t.Errorf("actorOf(%v) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestObjectOf(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "submission wins over task",
			payload: map[string]any{"submission_id": "s-1", "task_id": "t-1"},
			want:    "s-1",
		},
		{name: "task id", payload: map[string]any{"task_id": "t-1"}, want: "t-1"},
		{name: "user id", payload: map[string]any{"user_id": "u-1"}, want: "u-1"},
		{name: "nothing", payload: map[string]any{"state": "failed"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectOf(tt.payload); got != tt.want {
				t.Errorf("objectOf(%v) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestSnapshots(t *testing.T) {
	before := map[string]any{"status": "draft"}
	after := map[string]any{"status": "submitted"}

	b, a, ok := snapshots(map[string]any{"before": before, "after": after, "submission_id": "s-1"})
	if !ok {
		t.Fatal("snapshots not detected")
	}
	if !reflect.DeepEqual(b, before) || !reflect.DeepEqual(a, after) {
		t.Errorf("snapshots returned %v, %v", b, a)
	}

	if _, _, ok := snapshots(map[string]any{"before": before}); ok {
		t.Error("before alone should not count as a snapshot pair")
	}
	if _, _, ok := snapshots(map[string]any{"before": "draft", "after": "submitted"}); ok {
		t.Error("non-map snapshots should not count")
	}
}

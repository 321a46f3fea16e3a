package activity

import "testing"

func TestBuildKeySetEventMetadata(t *testing.T) {
	event := BuildKeySetEvent(KeyEventInput{
		ChainID:  "c1",
		Key:      "theme",
		OldValue: "light",
		NewValue: "dark",
		Existed:  true,
		Layer: ScopeContext{
			Index:    1,
			Name:     "user",
			Label:    "User",
			Priority: 300,
			Metadata: map[string]any{"id": "u-1"},
		},
		Metadata: map[string]any{"request": "r-9"},
	})

	if event.Verb != VerbKeySet || event.ObjectType != ObjectTypeKey || event.ObjectID != "c1/theme" {
		t.Fatalf("unexpected identity: %+v", event)
	}
	want := map[string]any{
		"layer_index":    1,
		"scope_name":     "user",
		"scope_priority": 300,
		"scope_label":    "User",
		"old_value":      "light",
		"new_value":      "dark",
		"existed":        true,
		"chain_id":       "c1",
		"request":        "r-9",
	}
	for key, value := range want {
		if event.Metadata[key] != value {
			t.Fatalf("metadata %q: want %v got %v", key, value, event.Metadata[key])
		}
	}
	scopeMeta, ok := event.Metadata["scope_metadata"].(map[string]any)
	if !ok || scopeMeta["id"] != "u-1" {
		t.Fatalf("expected scope metadata copy, got %v", event.Metadata["scope_metadata"])
	}
}

func TestBuildEventObjectIDs(t *testing.T) {
	cases := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "key without chain",
			event: BuildKeyDeletedEvent(KeyEventInput{Key: "theme"}),
			want:  "theme",
		},
		{
			name:  "layer with chain",
			event: BuildLayerClearedEvent(KeyEventInput{ChainID: "c1", Layer: ScopeContext{Index: 0}, Count: 3}),
			want:  "c1/layer/0",
		},
		{
			name:  "layer without chain",
			event: BuildLayerClearedEvent(KeyEventInput{Layer: ScopeContext{Index: 2}}),
			want:  "layer/2",
		},
		{
			name:  "child with chain",
			event: BuildChildCreatedEvent(KeyEventInput{ChainID: "c2", ParentID: "c1"}),
			want:  "c2",
		},
		{
			name:  "child without chain",
			event: BuildChildCreatedEvent(KeyEventInput{}),
			want:  ObjectTypeChain,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.event.ObjectID != tc.want {
				t.Fatalf("object id: want %q got %q", tc.want, tc.event.ObjectID)
			}
		})
	}
}

func TestBuildEventsOmitUnnamedScope(t *testing.T) {
	cleared := BuildLayerClearedEvent(KeyEventInput{Count: 4})
	if cleared.Metadata["count"] != 4 {
		t.Fatalf("expected count metadata, got %v", cleared.Metadata)
	}
	if _, ok := cleared.Metadata["scope_name"]; ok {
		t.Fatalf("unnamed layers should not report scope fields: %v", cleared.Metadata)
	}
	child := BuildChildCreatedEvent(KeyEventInput{ChainID: "c2", ParentID: "c1"})
	if child.Metadata["parent_id"] != "c1" {
		t.Fatalf("expected parent id metadata, got %v", child.Metadata)
	}
	set := BuildKeySetEvent(KeyEventInput{Key: "k"})
	if set.Metadata["existed"] != false {
		t.Fatalf("expected existed=false, got %v", set.Metadata["existed"])
	}
	if _, ok := set.Metadata["new_value"]; ok {
		t.Fatalf("nil new value should be omitted")
	}
}

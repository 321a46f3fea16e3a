package activity

import (
	"fmt"
	"strings"
	"time"
)

const (
	VerbKeySet       = "chain.key.set"
	VerbKeyDeleted   = "chain.key.deleted"
	VerbLayerCleared = "chain.layer.cleared"
	VerbChildCreated = "chain.child.created"

	ObjectTypeKey   = "chain.key"
	ObjectTypeLayer = "chain.layer"
	ObjectTypeChain = "chain"
)

// ScopeContext describes the layer a mutation landed in.
type ScopeContext struct {
	Index    int
	Name     string
	Label    string
	Priority int
	Metadata map[string]any
}

// KeyEventInput carries the common fields for chain lifecycle events.
type KeyEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	ChainID    string
	Channel    string
	Key        any
	OldValue   any
	NewValue   any
	Existed    bool
	Count      int
	ParentID   string
	Layer      ScopeContext
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildKeySetEvent describes a Set, including whether it overwrote a value
// already present in the target layer.
func BuildKeySetEvent(input KeyEventInput) Event {
	event := buildChainEvent(VerbKeySet, ObjectTypeKey, input)
	event.Metadata["existed"] = input.Existed
	if input.NewValue != nil {
		event.Metadata["new_value"] = input.NewValue
	}
	return event
}

// BuildKeyDeletedEvent describes a Delete or Pop.
func BuildKeyDeletedEvent(input KeyEventInput) Event {
	return buildChainEvent(VerbKeyDeleted, ObjectTypeKey, input)
}

// BuildLayerClearedEvent describes a Clear of the front layer.
func BuildLayerClearedEvent(input KeyEventInput) Event {
	event := buildChainEvent(VerbLayerCleared, ObjectTypeLayer, input)
	event.Metadata["count"] = input.Count
	return event
}

// BuildChildCreatedEvent describes a NewChild derivation.
func BuildChildCreatedEvent(input KeyEventInput) Event {
	event := buildChainEvent(VerbChildCreated, ObjectTypeChain, input)
	if input.ParentID != "" {
		event.Metadata["parent_id"] = input.ParentID
	}
	return event
}

func buildChainEvent(verb, objectType string, input KeyEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["layer_index"] = input.Layer.Index
	if input.Layer.Name != "" {
		metadata["scope_name"] = input.Layer.Name
		metadata["scope_priority"] = input.Layer.Priority
		if input.Layer.Label != "" {
			metadata["scope_label"] = input.Layer.Label
		}
		if len(input.Layer.Metadata) > 0 {
			metadata["scope_metadata"] = cloneMap(input.Layer.Metadata)
		}
	}
	if input.OldValue != nil {
		metadata["old_value"] = input.OldValue
	}
	if input.ChainID != "" {
		metadata["chain_id"] = input.ChainID
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID(objectType, input),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func objectID(objectType string, input KeyEventInput) string {
	chainID := strings.TrimSpace(input.ChainID)
	switch objectType {
	case ObjectTypeKey:
		key := strings.TrimSpace(fmt.Sprint(input.Key))
		if chainID == "" {
			return key
		}
		return chainID + "/" + key
	case ObjectTypeLayer:
		if chainID == "" {
			return fmt.Sprintf("layer/%d", input.Layer.Index)
		}
		return fmt.Sprintf("%s/layer/%d", chainID, input.Layer.Index)
	default:
		if chainID == "" {
			return objectType
		}
		return chainID
	}
}

package chainmap

import (
	"context"

	"github.com/goliatone/go-chainmap/pkg/activity"
)

func (c *Chain[K, V]) layerContext(index int) activity.ScopeContext {
	scope := c.scopes[index]
	return activity.ScopeContext{
		Index:    index,
		Name:     scope.Name,
		Label:    scope.Label,
		Priority: scope.Priority,
		Metadata: copyMetadata(scope.Metadata),
	}
}

func (c *Chain[K, V]) recordSet(key K, target int, old V, existed bool, value V) {
	c.cfg.log().LogEvent(LogEvent{Op: "set", Chain: c.id, Key: key, Layer: target, Scope: c.scopes[target].Name})
	if !c.cfg.emitter.Enabled() {
		return
	}
	input := activity.KeyEventInput{
		ChainID:  c.id,
		Key:      key,
		NewValue: value,
		Existed:  existed,
		Layer:    c.layerContext(target),
	}
	if existed {
		input.OldValue = old
	}
	c.emit(activity.BuildKeySetEvent(input))
}

func (c *Chain[K, V]) recordDelete(key K, target int, old V) {
	c.cfg.log().LogEvent(LogEvent{Op: "delete", Chain: c.id, Key: key, Layer: target, Scope: c.scopes[target].Name})
	if !c.cfg.emitter.Enabled() {
		return
	}
	c.emit(activity.BuildKeyDeletedEvent(activity.KeyEventInput{
		ChainID:  c.id,
		Key:      key,
		OldValue: old,
		Existed:  true,
		Layer:    c.layerContext(target),
	}))
}

func (c *Chain[K, V]) recordClear(count int) {
	c.cfg.log().LogEvent(LogEvent{Op: "clear", Chain: c.id, Scope: c.scopes[0].Name})
	if !c.cfg.emitter.Enabled() {
		return
	}
	c.emit(activity.BuildLayerClearedEvent(activity.KeyEventInput{
		ChainID: c.id,
		Count:   count,
		Layer:   c.layerContext(0),
	}))
}

func (c *Chain[K, V]) recordChild(child *Chain[K, V]) {
	if !c.cfg.emitter.Enabled() {
		return
	}
	c.emit(activity.BuildChildCreatedEvent(activity.KeyEventInput{
		ChainID:  child.id,
		ParentID: c.id,
		Layer:    child.layerContext(0),
	}))
}

func (c *Chain[K, V]) logMiss(op string, key K, err error) {
	c.cfg.log().LogEvent(LogEvent{Op: op, Chain: c.id, Key: key, Err: err})
}

// emit runs hooks synchronously. Hook failures never fail the mutation that
// triggered them; they are reported to the logger.
func (c *Chain[K, V]) emit(event activity.Event) {
	if err := c.cfg.emitter.Emit(context.Background(), event); err != nil {
		c.cfg.log().LogEvent(LogEvent{Op: "activity", Chain: c.id, Err: err})
	}
}

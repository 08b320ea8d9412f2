package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/convoflow/core/logger"
)

// ErrNotList is returned when an extend update targets a key whose
// existing value is not list-shaped.
var ErrNotList = errors.New("conversation: existing value is not a list")

// Context holds the mutable per-conversation state: the active state
// name (empty when no conversation is in progress) and the scratch
// key/value map. It is owned by the Store and mutated only inside a
// scoped Update call.
type Context struct {
	ID     ID
	Active string
	Data   map[string]any
}

// InConversation reports whether a conversation is currently active.
func (c *Context) InConversation() bool {
	return c != nil && c.Active != ""
}

// Value returns the scratch value under key.
func (c *Context) Value(key string) (any, bool) {
	if c == nil || c.Data == nil {
		return nil, false
	}
	v, ok := c.Data[key]
	return v, ok
}

func (c *Context) ensureData() {
	if c.Data == nil {
		c.Data = make(map[string]any)
	}
}

// reset clears the active state and scratch data when a conversation exits.
func (c *Context) reset() {
	c.Active = ""
	c.Data = nil
}

// asList returns the list form of a scratch value: []any as-is,
// []string coerced element-wise. Anything else is not a list.
func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// toList normalizes a scalar to a single-element list and passes lists
// through unchanged.
func toList(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := asList(v); ok {
		return list
	}
	return []any{v}
}

// applyUpdate mutates the scratch map per the update: set entries
// overwrite, extend entries append (scalar values count as one-element
// lists), delete keys are removed idempotently. Application is
// best-effort: a failing key is reported and skipped, remaining keys
// are still applied. There is no rollback.
func applyUpdate(ctx context.Context, c *Context, u DataUpdate) error {
	var errs []error

	if len(u.Set) > 0 {
		c.ensureData()
		for key, value := range u.Set {
			c.Data[key] = value
		}
	}

	if len(u.Extend) > 0 {
		c.ensureData()
		for key, value := range u.Extend {
			var list []any
			if existing, ok := c.Data[key]; ok && existing != nil {
				// Existing values get the same list coercion as the
				// incoming ones, so a stored []string extends cleanly.
				var isList bool
				list, isList = asList(existing)
				if !isList {
					logger.Warn(ctx, "conv.store", "extend.type_mismatch",
						slog.String("key", key),
						slog.String("have", fmt.Sprintf("%T", existing)),
					)
					errs = append(errs, fmt.Errorf("%w: key %s", ErrNotList, key))
					continue
				}
			}
			c.Data[key] = append(list, toList(value)...)
		}
	}

	for _, key := range u.Delete {
		delete(c.Data, key)
	}

	return errors.Join(errs...)
}

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/convoflow/core/logger"
)

// Policy tunes engine behaviour that product flows may want to vary.
type Policy struct {
	// AutoAdvance applies an implicit "next" transition when a handler
	// returns no state directive while a conversation is active. When
	// disabled such cycles leave the state untouched and send nothing.
	AutoAdvance bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the default engine policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// Engine is the post-processing pipeline driving conversations: it
// inspects handler directives, mutates the conversation context through
// the store, resolves the state transition and renders the resulting
// questions. Processing is strictly serialized per conversation and
// fully concurrent across conversations.
type Engine struct {
	registry *Registry
	store    Store
	sender   Sender
	policy   Policy

	mu    sync.Mutex
	locks map[ID]*sync.Mutex
}

// NewEngine wires the registry, store and sender into an engine with
// the default policy (auto-advance enabled).
func NewEngine(reg *Registry, store Store, sender Sender, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("conversation: nil registry")
	}
	if store == nil {
		return nil, fmt.Errorf("conversation: nil store")
	}
	if sender == nil {
		return nil, fmt.Errorf("conversation: nil sender")
	}
	e := &Engine{
		registry: reg,
		store:    store,
		sender:   sender,
		policy:   Policy{AutoAdvance: true},
		locks:    make(map[ID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry returns the state registry the engine was built with.
func (e *Engine) Registry() *Registry { return e.registry }

// HandleResult processes one handler result for the conversation
// identified by id: the first DataUpdate is applied to the scratch map,
// then the outcome is resolved with ExceptionSignal taking precedence
// over StateTarget, falling back to the auto-advance policy. Questions
// are rendered only after all context mutation is persisted, so a
// question about a just-saved value reflects the saved value. Transport
// failures are returned to the caller and are not retried here.
func (e *Engine) HandleResult(ctx context.Context, id ID, results []Directive) error {
	lock := e.conversationLock(id)
	lock.Lock()
	defer lock.Unlock()

	ctx = e.withMeta(ctx, id)
	update, target, signal := collect(results)

	var toRender QuestionSet
	err := e.store.Update(ctx, id, func(c *Context) error {
		if update != nil {
			// Best-effort: mismatched keys are logged and skipped,
			// remaining keys still apply.
			if uerr := applyUpdate(ctx, c, *update); uerr != nil {
				logger.Debug(ctx, "conv", "update.partial",
					slog.String("err", uerr.Error()),
				)
			}
		}

		switch {
		case signal != nil:
			// Report the error, stay in place.
			toRender = signal.Question
			logger.Debug(ctx, "conv", "exception",
				slog.String("state", c.Active),
				slog.Int("questions", len(toRender)),
			)
		case target != nil:
			next := resolveTarget(e.registry, c, *target)
			toRender = e.transition(ctx, c, next, target.OnExit)
		case c.InConversation() && e.policy.AutoAdvance:
			next := resolveTarget(e.registry, c, Switch(Next()))
			toRender = e.transition(ctx, c, next, nil)
		default:
			// No directives and no active conversation: nothing to do.
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("conversation %s: %w", id, err)
	}

	if len(toRender) == 0 {
		return nil
	}
	return Render(ctx, e.sender, id.ChatID, toRender)
}

// Start begins the group's flow for the conversation, entering its
// first state and asking its questions.
func (e *Engine) Start(ctx context.Context, id ID, g *Group) error {
	return e.HandleResult(ctx, id, []Directive{Switch(ToGroup(g))})
}

// Stop terminates the conversation, optionally rendering a farewell set.
func (e *Engine) Stop(ctx context.Context, id ID, onExit QuestionSet) error {
	return e.HandleResult(ctx, id, []Directive{StateTarget{Target: Exit(), OnExit: onExit}})
}

// ActiveState returns the conversation's active state, or nil when no
// conversation is in progress.
func (e *Engine) ActiveState(ctx context.Context, id ID) (*State, error) {
	var name string
	err := e.store.View(ctx, id, func(c *Context) error {
		name = c.Active
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", id, err)
	}
	st, ok := e.registry.Lookup(name)
	if !ok {
		return nil, nil
	}
	return st, nil
}

func (e *Engine) transition(ctx context.Context, c *Context, next *State, onExit QuestionSet) QuestionSet {
	before := c.Active
	qs := applyTransition(c, next, onExit)
	if next != nil {
		logger.Debug(ctx, "conv", "transition",
			slog.String("from", before),
			slog.String("state", c.Active),
		)
	} else {
		logger.Debug(ctx, "conv", "exit",
			slog.String("from", before),
			slog.Int("questions", len(qs)),
		)
	}
	return qs
}

// conversationLock returns the mutex serializing processing for id.
// Locks are created lazily and retained for the process lifetime.
func (e *Engine) conversationLock(id ID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

func (e *Engine) withMeta(ctx context.Context, id ID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithConversationMeta(ctx, id.ChatID, id.UserID)
	if logger.RIDFrom(ctx) == "" {
		ctx = logger.WithRID(ctx, logger.BuildRID(id.ChatID, id.UserID))
	}
	return ctx
}

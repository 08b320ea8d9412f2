package telegram

import (
	"context"
	"sync"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/convoflow/core/conversation"
	"github.com/m3rciful/convoflow/core/logger"
)

// HandlerFunc processes one incoming update for a conversation state
// and returns the directives to apply. Returning an error aborts the
// update without touching conversation state.
type HandlerFunc func(ctx context.Context, c tele.Context) ([]conversation.Directive, error)

// Flow binds conversation states to Telegram update handlers. Incoming
// text and callback updates are routed to the handler of the chat's
// active state; chats without an active conversation fall through to
// the optional fallback.
type Flow struct {
	engine *conversation.Engine

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback tele.HandlerFunc

	locksMu sync.Mutex
	locks   map[conversation.ID]*sync.Mutex
}

// NewFlow creates a Flow bound to the given engine.
func NewFlow(engine *conversation.Engine) *Flow {
	return &Flow{
		engine:   engine,
		handlers: make(map[string]HandlerFunc),
		locks:    make(map[conversation.ID]*sync.Mutex),
	}
}

// Handle registers the handler invoked while the named state is
// active. Duplicate registrations keep the first handler.
func (f *Flow) Handle(state string, h HandlerFunc) {
	if state == "" || h == nil {
		logger.Warn(context.Background(), "tg.flow", "register.skip",
			slog.String("state", state),
			slog.Bool("handler_nil", h == nil),
		)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.handlers[state]; exists {
		logger.Warn(context.Background(), "tg.flow", "register.duplicate",
			slog.String("state", state),
		)
		return
	}
	f.handlers[state] = h
}

// SetFallback sets the handler for updates arriving outside any
// conversation.
func (f *Flow) SetFallback(h tele.HandlerFunc) {
	f.mu.Lock()
	f.fallback = h
	f.mu.Unlock()
}

// Engine exposes the underlying conversation engine.
func (f *Flow) Engine() *conversation.Engine { return f.engine }

// Start begins the group's conversation for the update's chat and
// sends the first state's questions.
func (f *Flow) Start(c tele.Context, g *conversation.Group) error {
	ctx, id := UpdateContext(c)
	return f.engine.Start(ctx, id, g)
}

// Stop ends the active conversation, sending onExit if provided.
func (f *Flow) Stop(c tele.Context, onExit conversation.QuestionSet) error {
	ctx, id := UpdateContext(c)
	return f.engine.Stop(ctx, id, onExit)
}

// OnText routes an incoming text message to the active state's handler.
func (f *Flow) OnText(c tele.Context) error {
	return f.dispatch(c)
}

// OnCallback routes a callback update. The callback query is answered
// before the handler runs so the client spinner clears even when
// handling fails.
func (f *Flow) OnCallback(c tele.Context) error {
	if cb := c.Callback(); cb != nil {
		if err := c.Respond(&tele.CallbackResponse{}); err != nil {
			ctx, _ := UpdateContext(c)
			logger.Debug(ctx, "tg.flow", "callback.respond.fail",
				slog.String("err", err.Error()),
			)
		}
	}
	return f.dispatch(c)
}

func (f *Flow) dispatch(c tele.Context) error {
	ctx, id := UpdateContext(c)

	// The state lookup, the handler and the engine run under one
	// conversation lock: the next update from the same user must
	// observe the state this one leaves behind, not the stale one.
	lock := f.conversationLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, err := f.engine.ActiveState(ctx, id)
	if err != nil {
		logger.Error(ctx, "tg.flow", "dispatch.state_lookup.fail",
			slog.String("err", err.Error()),
		)
		return err
	}

	if state == nil {
		f.mu.RLock()
		fallback := f.fallback
		f.mu.RUnlock()
		if fallback != nil {
			return fallback(c)
		}
		logger.Debug(ctx, "tg.flow", "dispatch.no_conversation")
		return nil
	}

	f.mu.RLock()
	h := f.handlers[state.Name()]
	f.mu.RUnlock()
	if h == nil {
		logger.Warn(ctx, "tg.flow", "dispatch.handler_missing",
			slog.String("state", state.Name()),
		)
		return nil
	}

	ctx = logger.WithState(ctx, state.Name())
	results, err := h(ctx, c)
	if err != nil {
		logger.Error(ctx, "tg.flow", "dispatch.handler.fail",
			slog.String("state", state.Name()),
			slog.String("err", err.Error()),
		)
		return err
	}
	return f.engine.HandleResult(ctx, id, results)
}

// conversationLock returns the mutex serializing update dispatch for
// id. Locks are created lazily and retained for the process lifetime.
func (f *Flow) conversationLock(id conversation.ID) *sync.Mutex {
	f.locksMu.Lock()
	defer f.locksMu.Unlock()
	lock, ok := f.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[id] = lock
	}
	return lock
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/convoflow/core/config"
	"github.com/m3rciful/convoflow/core/conversation"
	"github.com/m3rciful/convoflow/core/logger"
	tgsender "github.com/m3rciful/convoflow/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of Run.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *conversation.Registry
	Store    conversation.Store

	// Handlers maps state names to their update handlers.
	Handlers map[string]HandlerFunc
	// Fallback receives updates arriving outside any conversation.
	Fallback tele.HandlerFunc

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Sender     *BotSender
	Engine     *conversation.Engine
	Flow       *Flow
}

// Run composes a bot around the conversation engine and runs it until
// the provided context is done. Text and callback updates are routed
// through the flow; extra routes and middlewares are registered as-is.
func Run(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Registry == nil {
		return fmt.Errorf("telegram: nil state registry provided")
	}
	if opts.Store == nil {
		return fmt.Errorf("telegram: nil conversation store provided")
	}

	cfg := opts.Config

	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: BuildPoller(cfg.Telegram.LongPollTimeoutSeconds),
		Client: BuildHTTPClient(ClientOptions{
			RetryLimit:   cfg.Sender.MaxRetries,
			RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
		}),
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dopts := opts.DispatcherOptions
		if dopts == (tgsender.Options{}) {
			dopts = tgsender.Options{
				QueueSize:    cfg.Sender.QueueSize,
				MaxRetries:   cfg.Sender.MaxRetries,
				RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
			}
		}
		dispatcher = tgsender.NewDispatcher(dopts)
	}

	botSender := NewBotSender(bot, dispatcher)
	engine, err := conversation.NewEngine(opts.Registry, opts.Store, botSender,
		conversation.WithPolicy(conversation.Policy{
			AutoAdvance: cfg.Conversation.AutoAdvanceEnabled(),
		}),
	)
	if err != nil {
		dispatcher.Close()
		return fmt.Errorf("telegram: engine setup failed: %w", err)
	}

	flow := NewFlow(engine)
	for state, h := range opts.Handlers {
		flow.Handle(state, h)
	}
	flow.SetFallback(opts.Fallback)

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Sender:     botSender,
		Engine:     engine,
		Flow:       flow,
	}

	logger.Info(ctx, "tg", "start",
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", cfg.Telegram.LongPollTimeoutSeconds),
		slog.Duration("duration", logger.Took(buildStart)),
	)

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	bot.Handle(tele.OnText, flow.OnText)
	bot.Handle(tele.OnCallback, flow.OnCallback)

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}

	dispatcher.Close()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

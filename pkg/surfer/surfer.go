package surfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/websurfer/internal/observability"
	"github.com/harun/websurfer/internal/tracing"
	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/toolexecutor"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Turn outcomes recorded in metrics
const (
	OutcomeDirect  = "direct"
	OutcomeTool    = "tool"
	OutcomeNoReply = "no_reply"
	OutcomeError   = "error"
)

// Surfer answers conversation turns with the help of a browser session
type Surfer struct {
	mu sync.Mutex

	name     string
	session  Session
	tools    *toolexecutor.ToolExecutor
	planner  *planner
	executor *executor
	logger   zerolog.Logger
}

// Option customizes a Surfer
type Option func(*options)

type options struct {
	planner    Completer
	summarizer Completer
	factory    agent.ProviderCreator
	now        func() time.Time
}

// WithPlannerModel replaces the model client built from Config.LLM
func WithPlannerModel(c Completer) Option {
	return func(o *options) {
		o.planner = c
	}
}

// WithSummarizerModel replaces the summarizer client built from the
// selected summarizer config. It is ignored when summarization is disabled.
func WithSummarizerModel(c Completer) Option {
	return func(o *options) {
		o.summarizer = c
	}
}

// WithProviderFactory sets the provider factory used by built clients
func WithProviderFactory(f agent.ProviderCreator) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithClock overrides the clock used for "previously visited" headers
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New builds a surfer over session and registers its tools
func New(cfg Config, session Session, opts ...Option) (*Surfer, error) {
	observability.EnsureRegistered()

	if session == nil {
		return nil, errors.New("session is required")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid surfer config: %w", err)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	logger := cfg.Logger.With().Str("component", "surfer").Str("surfer", cfg.Name).Logger()

	plannerModel := o.planner
	if plannerModel == nil {
		if cfg.LLM == nil {
			return nil, errors.New("llm config is required")
		}
		client, err := newClient(*cfg.LLM, cfg, o, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create planner client: %w", err)
		}
		plannerModel = client
	}

	var summarizer Completer
	if !cfg.SummarizerDisabled {
		if o.summarizer != nil {
			summarizer = o.summarizer
		} else if sc := SelectSummarizerConfig(cfg.Summarizer, cfg.LLM, false, cfg.PreferredModels, logger); sc != nil {
			client, err := newClient(*sc, cfg, o, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create summarizer client: %w", err)
			}
			summarizer = client
		}
	}

	exec := toolexecutor.New(toolexecutor.WithLogger(logger))
	bt := &browserTools{
		session:    session,
		summarizer: summarizer,
		tokenLimit: cfg.TokenLimit,
		headroom:   cfg.TokenHeadroom,
		now:        o.now,
	}
	if err := bt.register(exec); err != nil {
		return nil, err
	}

	logger.Info().
		Int("tools", exec.GetToolCount()).
		Bool("summarizer", summarizer != nil).
		Msg("Surfer ready")

	return &Surfer{
		name:    cfg.Name,
		session: session,
		tools:   exec,
		planner: &planner{
			model:        plannerModel,
			tools:        exec.Specs(),
			systemPrompt: cfg.SystemPrompt,
		},
		executor: &executor{
			tools:   exec,
			timeout: cfg.ToolTimeout,
			logger:  logger,
		},
		logger: logger,
	}, nil
}

func newClient(llm agent.LLMConfig, cfg Config, o options, logger zerolog.Logger) (*agent.Client, error) {
	clientOpts := []agent.ClientOption{agent.WithLogger(logger)}
	if cfg.Cache != nil {
		clientOpts = append(clientOpts, agent.WithCache(cfg.Cache))
	}
	if o.factory != nil {
		clientOpts = append(clientOpts, agent.WithProviderFactory(o.factory))
	}
	return agent.NewClient(llm, clientOpts...)
}

// Name returns the surfer's name
func (s *Surfer) Name() string {
	return s.name
}

// Session returns the browser session the tools act on
func (s *Surfer) Session() Session {
	return s.session
}

// Tools returns the tools offered to the planner, in advertised order
func (s *Surfer) Tools() []toolexecutor.ToolDefinition {
	return s.tools.Definitions()
}

// GenerateReply answers the last message of messages. The earlier messages
// are context for the planner; messages itself is not modified. A nil
// reply with a nil error means the planner produced nothing this turn.
func (s *Surfer) GenerateReply(ctx context.Context, messages []agent.Message) (*agent.Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("no message to reply to")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	turnID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate turn id: %w", err)
	}

	ctx = tracing.NewTurnContext(ctx, turnID)
	ctx, span := tracing.StartSpan(ctx, "websurfer.surfer", "surfer.turn",
		attribute.String("turn_id", turnID),
		attribute.Int("messages", len(messages)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	// Each turn starts from a fresh copy of the conversation and fresh channels
	history := agent.CloneMessages(messages[:len(messages)-1])
	history = append(history, agent.Message{Role: agent.RoleUser, Content: reminder(s.session)})
	last := messages[len(messages)-1]

	dispatch := make(chan agent.Message, 1)
	plannerOut := make(chan planned, 1)
	go s.planner.run(tracing.PropagateToRole(ctx, "planner"), history, dispatch, plannerOut)
	dispatch <- agent.Message{Role: agent.RoleUser, Content: last.Content}

	candidate := <-plannerOut
	if candidate.err != nil {
		span.RecordError(candidate.err)
		span.SetStatus(codes.Error, candidate.err.Error())
		observability.RecordTurn(OutcomeError, time.Since(start))
		logger.Error().Err(candidate.err).Msg("Turn failed")
		return nil, candidate.err
	}

	executorOut := make(chan executed, 1)
	go s.executor.run(tracing.PropagateToRole(ctx, "executor"), turnID, candidate.msg, executorOut)
	result := <-executorOut

	reply, outcome := s.resolve(candidate.msg, result)
	span.SetAttributes(attribute.String("outcome", outcome))
	observability.RecordTurn(outcome, time.Since(start))
	logger.Debug().Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("Turn completed")

	return reply, nil
}

// resolve picks the visible reply: the tool result when a tool ran,
// otherwise the planner's own message.
func (s *Surfer) resolve(candidate *agent.Message, result executed) (*agent.Message, string) {
	if result.isDefault {
		if candidate == nil {
			return nil, OutcomeNoReply
		}
		return &agent.Message{Role: agent.RoleAssistant, Name: s.name, Content: candidate.Content}, OutcomeDirect
	}
	if result.msg == nil {
		return nil, OutcomeNoReply
	}
	return &agent.Message{
		Role:    agent.RoleAssistant,
		Name:    s.name,
		Content: result.msg.Content,
		Error:   result.msg.Error,
	}, OutcomeTool
}

// Package session orchestrates one exchange: directive expansion,
// backend invocation, cost and duration stats, conversation-log
// persistence, and the optional save/diff handoff.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rashkov/gish/internal/chat"
	"github.com/rashkov/gish/internal/convlog"
	"github.com/rashkov/gish/internal/directive"
	"github.com/rashkov/gish/internal/pathutil"
)

// ErrorPrefix marks an in-band backend failure on the response text.
// Callers inspect the marker rather than an error value; an erroring
// exchange is still logged like any other.
const ErrorPrefix = "Error: "

// CostUnavailable is reported when cost cannot be computed for the
// selected model.
const CostUnavailable = "unavailable"

// ExchangeConfig enumerates the per-invocation options. It is populated
// and validated once at the CLI boundary.
type ExchangeConfig struct {
	Model  string
	Stream bool
	Chat   bool
	DryRun bool
	Stats  bool
	Save   bool
	Diff   string // explicit diff target path, may be empty
	Prompt string // path to a system prompt file, may be empty

	// StreamOut receives deltas as they arrive in streaming mode, for
	// live display. Nil discards them.
	StreamOut io.Writer
}

// Result carries the outcome of one exchange back to the CLI.
type Result struct {
	Text            string
	Expanded        string
	TokenCount      int // as reported by the provider; 0 means unknown
	EstimatedTokens int // local estimate, shown when the provider reports nothing
	Cost            string
	Duration        time.Duration
	DiffTargets     []string
	SavedPath       string
	DryRun          bool
}

// Saver persists response text for inspection or comparison.
type Saver interface {
	Save(text, diffTarget string, save bool) (string, error)
}

// Launcher spawns an interactive comparison of two files.
type Launcher interface {
	Launch(ctx context.Context, newFile, diffFile string) error
}

// ControllerConfig carries the settings the controller needs, resolved
// once at process start. Nothing is looked up ambiently.
type ControllerConfig struct {
	// DefaultModel is the only model cost can be computed for.
	DefaultModel string
	// CostPerToken is the per-token rate for DefaultModel.
	CostPerToken float64
}

// Controller runs exchanges against a backend and records them.
type Controller struct {
	backend  chat.Backend
	log      *convlog.Log
	cfg      ControllerConfig
	saver    Saver
	launcher Launcher
	logger   *zap.Logger
}

// NewController creates a controller. A nil logger disables diagnostics.
func NewController(backend chat.Backend, log *convlog.Log, cfg ControllerConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{backend: backend, log: log, cfg: cfg, logger: logger}
}

// SetSaver installs the post-exchange save collaborator.
func (c *Controller) SetSaver(s Saver) {
	c.saver = s
}

// SetLauncher installs the post-exchange diff collaborator.
func (c *Controller) SetLauncher(l Launcher) {
	c.launcher = l
}

// RunExchange performs one exchange. Directive failures and unreadable
// collaborator files return an error before anything is sent or logged;
// backend failures come back as a normal Result whose Text carries the
// ErrorPrefix marker.
func (c *Controller) RunExchange(ctx context.Context, requestText string, cfg ExchangeConfig) (*Result, error) {
	logger := c.logger.With(zap.String("request_id", uuid.NewString()))

	expanded := directive.Expand(requestText)
	if !expanded.OK {
		logger.Warn("directive expansion failed", zap.String("detail", expanded.Text))
		return nil, fmt.Errorf("%s", expanded.Text)
	}

	diffTargets := expanded.DiffTargets
	if cfg.Diff != "" {
		diffTargets = append(diffTargets, pathutil.Normalize(cfg.Diff))
	}

	if cfg.DryRun {
		est := EstimateTokens(expanded.Text)
		return &Result{
			Text:            expanded.Text,
			Expanded:        expanded.Text,
			EstimatedTokens: est,
			Cost:            c.costString(cfg.Model, est),
			DiffTargets:     diffTargets,
			DryRun:          true,
		}, nil
	}

	messages, err := c.buildMessages(cfg, expanded.Text)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome := c.invoke(ctx, messages, cfg, logger)
	duration := time.Since(start)

	text := strings.TrimSpace(outcome.Text)
	tokens := outcome.TokenCount
	estimated := tokens
	if estimated == 0 {
		estimated = EstimateTokens(expanded.Text + text)
	}
	cost := c.costString(cfg.Model, estimated)

	messages = append(messages, chat.Message{Role: chat.RoleAssistant, Content: text})
	entry := convlog.Entry{
		Messages:        messages,
		Timestamp:       start.Format(time.RFC3339),
		TokenCount:      tokens,
		Cost:            cost,
		DurationSeconds: duration.Seconds(),
	}
	if err := c.log.Append(entry); err != nil {
		logger.Warn("failed to append conversation log", zap.Error(err))
	}

	res := &Result{
		Text:            text,
		Expanded:        expanded.Text,
		TokenCount:      tokens,
		EstimatedTokens: estimated,
		Cost:            cost,
		Duration:        duration,
		DiffTargets:     diffTargets,
	}
	c.handoff(ctx, res, cfg, logger)
	return res, nil
}

// buildMessages assembles the outgoing sequence: prior turn in chat
// mode, an optional system prompt when starting fresh, then the new user
// message.
func (c *Controller) buildMessages(cfg ExchangeConfig, expandedText string) ([]chat.Message, error) {
	var messages []chat.Message
	if cfg.Chat {
		prior, err := c.log.LastConversation()
		if err != nil {
			return nil, err
		}
		messages = append(messages, prior...)
	}
	if cfg.Prompt != "" && len(messages) == 0 {
		data, err := os.ReadFile(pathutil.Normalize(cfg.Prompt))
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		messages = append(messages, chat.Message{
			Role:    chat.RoleSystem,
			Content: strings.TrimSpace(string(data)),
		})
	}
	messages = append(messages, chat.Message{Role: chat.RoleUser, Content: expandedText})
	return messages, nil
}

// invoke runs the backend call, converting any failure into an in-band
// error-marked outcome.
func (c *Controller) invoke(ctx context.Context, messages []chat.Message, cfg ExchangeConfig, logger *zap.Logger) chat.Outcome {
	if cfg.Stream {
		return c.invokeStream(ctx, messages, cfg, logger)
	}
	outcome, err := c.backend.SendBatch(ctx, messages)
	if err != nil {
		logger.Error("backend request failed", zap.Error(err))
		return chat.Outcome{Text: ErrorPrefix + err.Error()}
	}
	return outcome
}

// invokeStream drains the event sequence, concatenating deltas in
// arrival order and copying them to StreamOut for live display.
func (c *Controller) invokeStream(ctx context.Context, messages []chat.Message, cfg ExchangeConfig, logger *zap.Logger) chat.Outcome {
	events, err := c.backend.SendStream(ctx, messages)
	if err != nil {
		logger.Error("backend stream setup failed", zap.Error(err))
		return chat.Outcome{Text: ErrorPrefix + err.Error()}
	}

	out := cfg.StreamOut
	if out == nil {
		out = io.Discard
	}

	var sb strings.Builder
	tokens := 0
	for ev := range events {
		switch {
		case ev.Err != nil:
			logger.Error("stream failed", zap.Error(ev.Err))
			return chat.Outcome{Text: ErrorPrefix + ev.Err.Error()}
		case ev.Done:
			tokens = ev.TokenCount
		default:
			sb.WriteString(ev.Delta)
			fmt.Fprint(out, ev.Delta)
		}
	}
	return chat.Outcome{Text: sb.String(), TokenCount: tokens}
}

// costString computes the cost display for the given token figure. Cost
// is only known for the configured default model; anything else reports
// unavailable rather than a wrong number.
func (c *Controller) costString(model string, tokens int) string {
	if model != c.cfg.DefaultModel || c.cfg.CostPerToken <= 0 {
		return CostUnavailable
	}
	return fmt.Sprintf("$%.6f", float64(tokens)*c.cfg.CostPerToken)
}

// handoff runs the optional save and diff steps after a successful
// exchange. Failures here are logged, not propagated; the exchange
// itself already succeeded.
func (c *Controller) handoff(ctx context.Context, res *Result, cfg ExchangeConfig, logger *zap.Logger) {
	if strings.HasPrefix(res.Text, ErrorPrefix) {
		return
	}
	if c.saver == nil || (!cfg.Save && len(res.DiffTargets) == 0) {
		return
	}

	target := ""
	if len(res.DiffTargets) > 0 {
		target = res.DiffTargets[0]
	}
	saved, err := c.saver.Save(res.Text, target, cfg.Save)
	if err != nil {
		logger.Warn("failed to save response", zap.Error(err))
		return
	}
	res.SavedPath = saved

	if saved == "" || c.launcher == nil {
		return
	}
	for _, target := range res.DiffTargets {
		if err := c.launcher.Launch(ctx, saved, target); err != nil {
			logger.Warn("diff launch failed", zap.String("target", target), zap.Error(err))
		}
	}
}

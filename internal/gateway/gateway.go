package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitgenius-bot/internal/models"
	"fitgenius-bot/pkg/logger"
)

// Request is one structured-generation call as seen by a provider adapter.
// Schema is nil for free-text answers.
type Request struct {
	System     string
	Prompt     string
	SchemaName string
	Schema     json.RawMessage
}

// Completer is the network adapter boundary. Implementations return
// *UpstreamError (or any error) on failure; the gateway classifies it.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req Request) (string, error)
}

// ProgressFunc receives human readable progress strings during generation.
type ProgressFunc func(msg string)

type Gateway struct {
	pool       *CredentialPool
	completer  Completer
	classifier *Classifier
	logger     *logger.Logger
	now        func() time.Time
}

type Option func(*Gateway)

func WithClassifier(c *Classifier) Option {
	return func(g *Gateway) { g.classifier = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func New(pool *CredentialPool, completer Completer, opts ...Option) *Gateway {
	g := &Gateway{
		pool:       pool,
		completer:  completer,
		classifier: NewClassifier(DefaultClassifierRules()),
		logger:     logger.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HasCredentials reports whether any call can be attempted at all.
func (g *Gateway) HasCredentials() bool {
	return g.pool != nil && g.pool.Size() > 0
}

// SetCredentials replaces the pool's keys at runtime.
func (g *Gateway) SetCredentials(keys []string) {
	g.pool.Reset(keys)
}

// GeneratePlan produces a validated plan for the given week. feedback should
// be present for week > 1 but its absence is not an error.
func (g *Gateway) GeneratePlan(ctx context.Context, profile *models.UserProfile, week int, feedback *models.WeeklyFeedback, progress ProgressFunc) (*models.FitnessPlan, error) {
	const op = "generate_plan"
	if week < 1 {
		return nil, fmt.Errorf("gateway %s: week number must be at least 1, got %d", op, week)
	}
	if week > 1 && feedback == nil {
		g.logger.Warnw("Generating follow-up week without feedback", "week", week)
	}

	prompt, err := BuildPlanPrompt(profile, week, feedback)
	if err != nil {
		return nil, err
	}
	notify(progress, fmt.Sprintf("Menyusun rencana minggu ke-%d...", week))

	req := Request{System: systemPrompt, Prompt: prompt, SchemaName: "fitness_plan", Schema: schemaJSON(PlanSchema)}
	var plan *models.FitnessPlan
	err = g.call(ctx, op, req, func(raw string) error {
		notify(progress, "Memvalidasi rencana...")
		p, err := decodePlan(raw)
		if err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	plan.WeekNumber = week
	plan.CreatedAt = g.now().UTC().Truncate(time.Second)
	for i := range plan.Routines {
		plan.Routines[i].IsCompleted = false
	}
	notify(progress, "Rencana siap!")
	return plan, nil
}

// RegenerateDiet produces a fresh 7-day diet for the profile.
func (g *Gateway) RegenerateDiet(ctx context.Context, profile *models.UserProfile) ([]models.DailyDiet, error) {
	const op = "regenerate_diet"
	prompt, err := BuildDietPrompt(profile)
	if err != nil {
		return nil, err
	}

	req := Request{System: systemPrompt, Prompt: prompt, SchemaName: "weekly_diet", Schema: schemaJSON(DietSchema)}
	var diet []models.DailyDiet
	err = g.call(ctx, op, req, func(raw string) error {
		d, err := decodeDiet(raw)
		if err != nil {
			return err
		}
		diet = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diet, nil
}

// AskAssistant answers a free-text question about today's plan.
func (g *Gateway) AskAssistant(ctx context.Context, profile *models.UserProfile, diet *models.DailyDiet, routine *models.DailyRoutine, question string) (string, error) {
	const op = "ask_assistant"
	prompt, err := BuildAssistantPrompt(profile, diet, routine, question)
	if err != nil {
		return "", err
	}

	var answer string
	err = g.call(ctx, op, Request{Prompt: prompt}, func(raw string) error {
		answer = strings.TrimSpace(raw)
		if answer == "" {
			return errors.New("empty answer")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// call runs req with credential rotation. Each credential is tried at most
// once, starting from the shared cursor. Only auth and quota failures
// rotate; decode failures from accept and anything else propagate at once.
// On success the cursor stays on the credential that worked.
func (g *Gateway) call(ctx context.Context, op string, req Request, accept func(raw string) error) error {
	size := 0
	if g.pool != nil {
		size = g.pool.Size()
	}
	if size == 0 {
		return newError(KindNoCredentials, op, nil)
	}

	var last *Error
	tried := make(map[int]bool, size)
	for attempt := 1; attempt <= size; attempt++ {
		// other callers may move the cursor back onto a key this call saw fail
		key, idx, ok := g.pool.Pick(tried)
		if !ok {
			break
		}
		tried[idx] = true

		raw, err := g.completer.Complete(ctx, key, req)
		if err == nil {
			if decodeErr := accept(raw); decodeErr != nil {
				g.logger.Errorw("Model response rejected", "op", op, "key_index", idx, "error", decodeErr)
				e := newError(KindMalformedResponse, op, decodeErr)
				e.Attempts = attempt
				return e
			}
			g.logger.Debugw("Generation succeeded", "op", op, "key_index", idx, "attempt", attempt)
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			e := newError(KindTransport, op, ctxErr)
			e.Attempts = attempt
			return e
		}

		kind := g.classifier.Classify(err)
		last = newError(kind, op, err)
		last.Attempts = attempt
		g.logger.Warnw("Generation attempt failed", "op", op, "key_index", idx, "attempt", attempt, "kind", kind.String(), "error", err)

		if !kind.Rotatable() {
			return last
		}
		g.pool.Advance(idx)
	}

	if last == nil {
		return newError(KindNoCredentials, op, nil)
	}
	last.Exhausted = true
	g.logger.Errorw("All credentials failed", "op", op, "attempts", last.Attempts, "kind", last.Kind.String())
	return last
}

func notify(progress ProgressFunc, msg string) {
	if progress != nil {
		progress(msg)
	}
}

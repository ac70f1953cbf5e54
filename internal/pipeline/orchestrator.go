package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"uiagent/internal/llm"
	"uiagent/internal/registry"
	"uiagent/internal/types"
	"uiagent/internal/util/jsonutil"
)

// Stage names one model exchange. Stages run in declaration order.
type Stage string

const (
	StagePlan     Stage = "plan"
	StageValidate Stage = "validate"
	StageGenerate Stage = "generate"
	StageExplain  Stage = "explain"
)

// Stages lists the pipeline in execution order.
var Stages = []Stage{StagePlan, StageValidate, StageGenerate, StageExplain}

// ErrBackendUnavailable classifies every failure that aborts a run.
var ErrBackendUnavailable = errors.New("model backend unavailable")

// StageError reports which stage's exchange failed. It matches both
// ErrBackendUnavailable and the underlying cause under errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() []error { return []error{ErrBackendUnavailable, e.Err} }

// Request is the pipeline entry point payload.
type Request struct {
	Intent       string      `json:"intent"`
	PreviousPlan *types.Plan `json:"previousPlan"`
	PreviousCode *string     `json:"previousCode"`
}

// RequestFromTurn builds the context for a follow-up to prev, which may be
// nil. Empty previous code is sent as null.
func RequestFromTurn(intent string, prev *types.Turn) Request {
	req := Request{Intent: intent}
	if prev != nil {
		plan, code := prev.Plan, prev.Code
		req.PreviousPlan = &plan
		if code != "" {
			req.PreviousCode = &code
		}
	}
	return req
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveStage(stage string, took time.Duration)
	ExtractionFailed(stage string)
	RunFinished(outcome string)
}

// Orchestrator runs Plan, Validate, Generate and Explain against one backend.
// It is safe for concurrent use; each Run is independent.
type Orchestrator struct {
	client  llm.Client
	prompts Prompts
	timeout time.Duration
	log     *zap.Logger
	rec     Recorder
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTimeout bounds a whole run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.rec = r }
}

// WithClock overrides the Turn version source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(client llm.Client, reg *registry.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		prompts: BuildPrompts(reg),
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Prompts returns the system instructions in use.
func (o *Orchestrator) Prompts() Prompts { return o.prompts }

// PlanningContext renders the user content shared by the Plan and Explain stages.
func PlanningContext(req Request) string {
	prevPlan := "null"
	if req.PreviousPlan != nil {
		prevPlan = jsonutil.Stringify(*req.PreviousPlan)
	}
	prevCode := "null"
	if req.PreviousCode != nil {
		prevCode = *req.PreviousCode
	}
	return fmt.Sprintf("\nUSER_INTENT: %s\nPREVIOUS_PLAN: %s\nPREVIOUS_CODE: %s\n    ", req.Intent, prevPlan, prevCode)
}

// Run executes the four stages and assembles a Turn. Only backend failures
// and the run timeout return an error; extraction problems degrade in-band.
func (o *Orchestrator) Run(ctx context.Context, req Request, opts ...RunOption) (types.Turn, error) {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	turn, err := o.run(ctx, req, &rc)
	outcome := "ok"
	if err != nil {
		outcome = "backend_unavailable"
		o.log.Warn("pipeline failed", zap.Error(err))
	}
	if o.rec != nil {
		o.rec.RunFinished(outcome)
	}
	return turn, err
}

func (o *Orchestrator) run(ctx context.Context, req Request, rc *runConfig) (types.Turn, error) {
	planCtx := PlanningContext(req)

	plannerOut, err := o.exchange(ctx, rc, StagePlan, o.prompts.Planner, planCtx)
	if err != nil {
		return types.Turn{}, err
	}
	plan, ok := ExtractPlan(plannerOut)
	if !ok {
		o.degraded(rc, StagePlan, "no JSON object in planner output")
	}

	validation, err := o.exchange(ctx, rc, StageValidate, o.prompts.Validator, plannerOut)
	if err != nil {
		return types.Turn{}, err
	}

	generated, err := o.exchange(ctx, rc, StageGenerate, o.prompts.Generator, plannerOut)
	if err != nil {
		return types.Turn{}, err
	}
	code, fenced := ExtractCode(generated)
	if !fenced {
		o.degraded(rc, StageGenerate, "no fenced code block")
	}

	explainIn := "Plan: " + jsonutil.Stringify(plan) + "\nChanges: " + planCtx
	explained, err := o.exchange(ctx, rc, StageExplain, o.prompts.Explainer, explainIn)
	if err != nil {
		return types.Turn{}, err
	}

	return types.Turn{
		UserIntent:  req.Intent,
		Plan:        plan,
		Validation:  validation,
		Code:        code,
		Explanation: CleanExplanation(explained),
		Version:     o.now().UnixMilli(),
	}, nil
}

func (o *Orchestrator) exchange(ctx context.Context, rc *runConfig, stage Stage, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		rc.emit(Event{Kind: EventStageFailed, Stage: stage, Error: err.Error()})
		return "", &StageError{Stage: stage, Err: err}
	}
	rc.emit(Event{Kind: EventStageStarted, Stage: stage})
	start := time.Now()
	out, err := o.client.Complete(llm.WithPhase(ctx, string(stage)), system, user)
	took := time.Since(start)
	if o.rec != nil {
		o.rec.ObserveStage(string(stage), took)
	}
	if err == nil && out == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		rc.emit(Event{Kind: EventStageFailed, Stage: stage, TookMS: took.Milliseconds(), Error: err.Error()})
		return "", &StageError{Stage: stage, Err: err}
	}
	o.log.Debug("stage finished",
		zap.String("stage", string(stage)),
		zap.Int("bytes", len(out)),
		zap.Duration("took", took))
	rc.emit(Event{Kind: EventStageFinished, Stage: stage, TookMS: took.Milliseconds()})
	return out, nil
}

func (o *Orchestrator) degraded(rc *runConfig, stage Stage, reason string) {
	o.log.Info("extraction degraded", zap.String("stage", string(stage)), zap.String("reason", reason))
	if o.rec != nil {
		o.rec.ExtractionFailed(string(stage))
	}
	rc.emit(Event{Kind: EventStageDegraded, Stage: stage, Error: reason})
}

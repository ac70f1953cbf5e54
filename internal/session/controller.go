package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"uiagent/internal/archive"
	"uiagent/internal/artifact"
	"uiagent/internal/lock"
	"uiagent/internal/pipeline"
	"uiagent/internal/render"
	"uiagent/internal/types"
)

var (
	// ErrBusy is returned when an action is already running for the session.
	ErrBusy = errors.New("session: another action is in progress")
	// ErrNotFound is returned for unknown or evicted sessions.
	ErrNotFound = errors.New("session: not found")
)

// Runner is the pipeline surface the controller drives.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, opts ...pipeline.RunOption) (types.Turn, error)
}

// Result is the state handed back after an action.
type Result struct {
	SessionID string `json:"sessionId"`
	// Turn is the current turn, nil when the history is empty.
	Turn  *types.Turn         `json:"turn"`
	Tree  []render.RenderNode `json:"tree"`
	Turns int                 `json:"turns"`
}

// Config tunes the controller.
type Config struct {
	MaxSessions     int
	IdleTTL         time.Duration
	RenderCacheSize int
	// LockTTL bounds how long a distributed lock survives a crashed holder.
	LockTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1024
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 2 * time.Hour
	}
	if c.RenderCacheSize <= 0 {
		c.RenderCacheSize = 256
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	return c
}

// Controller coordinates sessions: it runs the pipeline for an intent,
// appends the result to history, and resolves the current plan.
type Controller struct {
	runner  Runner
	interp  *render.Interpreter
	cfg     Config
	log     *zap.Logger
	locker  lock.Locker
	archive archive.Archive
	store   artifact.Store
	gauge   func(int)
	newID   func() string
	now     func() time.Time

	// live mirrors sessions.Len; eviction callbacks run under the LRU lock.
	live     atomic.Int64
	sessions *expirable.LRU[string, *Session]
	renders  *lru.Cache[string, []render.RenderNode]
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithLocker adds a cross-replica lock taken after the in-process one.
func WithLocker(l lock.Locker) Option { return func(c *Controller) { c.locker = l } }

// WithArchive records every history mutation.
func WithArchive(a archive.Archive) Option { return func(c *Controller) { c.archive = a } }

// WithArtifacts stores each appended turn's code and plan.
func WithArtifacts(s artifact.Store) Option { return func(c *Controller) { c.store = s } }

// WithSessionGauge reports the live session count after every change.
func WithSessionGauge(fn func(int)) Option { return func(c *Controller) { c.gauge = fn } }

// WithIDGenerator overrides uuid session ids.
func WithIDGenerator(fn func() string) Option { return func(c *Controller) { c.newID = fn } }

func NewController(runner Runner, interp *render.Interpreter, cfg Config, opts ...Option) (*Controller, error) {
	cfg = cfg.withDefaults()
	c := &Controller{
		runner: runner,
		interp: interp,
		cfg:    cfg,
		log:    zap.NewNop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	renders, err := lru.New[string, []render.RenderNode](cfg.RenderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("session: render cache: %w", err)
	}
	c.renders = renders
	c.sessions = expirable.NewLRU[string, *Session](cfg.MaxSessions, c.onEvict, cfg.IdleTTL)
	return c, nil
}

func (c *Controller) onEvict(id string, s *Session) {
	c.log.Info("session evicted", zap.String("session_id", id), zap.Int("turns", s.History.Len()))
	s.closeSubscribers()
	c.reportGauge(c.live.Add(-1))
}

func (c *Controller) reportGauge(n int64) {
	if c.gauge != nil {
		c.gauge(int(n))
	}
}

// Create starts an empty session.
func (c *Controller) Create() *Session {
	s := newSession(c.newID(), c.now())
	c.live.Add(1)
	c.sessions.Add(s.ID, s)
	c.reportGauge(c.live.Load())
	c.log.Info("session created", zap.String("session_id", s.ID))
	return s
}

// Get returns a live session and refreshes its idle timer.
func (c *Controller) Get(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	s, ok := c.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	// Re-adding an existing key renews its expiry.
	c.sessions.Add(id, s)
	return s, nil
}

// Len reports the live session count.
func (c *Controller) Len() int { return int(c.live.Load()) }

func (c *Controller) acquire(ctx context.Context, s *Session) (func(), error) {
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	if c.locker == nil {
		return s.busy.Unlock, nil
	}
	unlock, err := c.locker.TryLock(ctx, s.ID, c.cfg.LockTTL)
	if err != nil {
		s.busy.Unlock()
		if errors.Is(err, lock.ErrHeld) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("session: lock: %w", err)
	}
	return func() {
		// Release with a fresh context so a canceled request still frees the key.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlock(rctx); err != nil {
			c.log.Warn("release lock", zap.String("session_id", s.ID), zap.Error(err))
		}
		s.busy.Unlock()
	}, nil
}

// Generate runs the pipeline for intent against the session's current turn.
// On failure the history is untouched.
func (c *Controller) Generate(ctx context.Context, id, intent string) (Result, error) {
	s, err := c.Get(id)
	if err != nil {
		return Result{}, err
	}
	release, err := c.acquire(ctx, s)
	if err != nil {
		return Result{}, err
	}
	defer release()

	var prev *types.Turn
	if cur, ok := s.History.Current(); ok {
		prev = &cur
	}
	turns := s.History.Len()
	turn, err := c.runner.Run(ctx, pipeline.RequestFromTurn(intent, prev),
		pipeline.WithEvents(func(e pipeline.Event) { s.publish(stageEvent(e, turns)) }))
	if err != nil {
		s.publish(Event{Kind: string(EventPipelineFailed), Error: err.Error(), Turns: turns})
		return Result{}, err
	}

	seq := s.History.Append(turn)
	turns = s.History.Len()
	c.log.Info("turn appended", zap.String("session_id", s.ID), zap.Int("turns", turns), zap.Int64("version", turn.Version))
	s.publish(Event{Kind: string(EventTurnAppended), Turns: turns, Version: turn.Version})
	c.record(ctx, s.ID, archive.KindAppend, turns, &turn)
	c.saveArtifacts(ctx, s.ID, turn)

	return Result{SessionID: s.ID, Turn: &turn, Tree: c.render(s.ID, seq, turn), Turns: turns}, nil
}

// Rollback discards the current turn. Rolling back an empty history is not
// an error.
func (c *Controller) Rollback(ctx context.Context, id string) (Result, error) {
	s, err := c.Get(id)
	if err != nil {
		return Result{}, err
	}
	release, err := c.acquire(ctx, s)
	if err != nil {
		return Result{}, err
	}
	defer release()

	before := s.History.Len()
	s.History.Rollback()
	turns := s.History.Len()
	res := Result{SessionID: s.ID, Tree: []render.RenderNode{}, Turns: turns}
	if cur, seq, ok := s.History.Head(); ok {
		res.Turn = &cur
		res.Tree = c.render(s.ID, seq, cur)
	}
	if before == 0 {
		return res, nil
	}
	c.log.Info("rolled back", zap.String("session_id", s.ID), zap.Int("turns", turns))
	ev := Event{Kind: string(EventRolledBack), Turns: turns}
	if res.Turn != nil {
		ev.Version = res.Turn.Version
	}
	s.publish(ev)
	c.record(ctx, s.ID, archive.KindRollback, turns, res.Turn)
	return res, nil
}

// Current returns the session's current turn and its resolved tree.
func (c *Controller) Current(id string) (Result, error) {
	s, err := c.Get(id)
	if err != nil {
		return Result{}, err
	}
	res := Result{SessionID: s.ID, Tree: []render.RenderNode{}, Turns: s.History.Len()}
	if cur, seq, ok := s.History.Head(); ok {
		res.Turn = &cur
		res.Tree = c.render(s.ID, seq, cur)
	}
	return res, nil
}

// render resolves a turn's plan. Results are cached per session and append
// sequence; callers must treat the returned tree as read-only.
func (c *Controller) render(sessionID string, seq uint64, t types.Turn) []render.RenderNode {
	key := sessionID + "/" + strconv.FormatUint(seq, 10)
	if tree, ok := c.renders.Get(key); ok {
		return tree
	}
	tree := c.interp.ResolvePlan(t.Plan)
	c.renders.Add(key, tree)
	return tree
}

func (c *Controller) record(ctx context.Context, id string, kind archive.Kind, turns int, t *types.Turn) {
	if c.archive == nil {
		return
	}
	if _, err := c.archive.Record(ctx, archive.Event{SessionID: id, Kind: kind, Turns: turns, Turn: t}); err != nil {
		c.log.Warn("archive record failed", zap.String("session_id", id), zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (c *Controller) saveArtifacts(ctx context.Context, id string, t types.Turn) {
	if c.store == nil {
		return
	}
	if err := artifact.SaveTurn(ctx, c.store, id, t); err != nil {
		c.log.Warn("artifact save failed", zap.String("session_id", id), zap.Error(err))
	}
}

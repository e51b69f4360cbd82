// Package app sequences onboarding, plan generation, workouts and weekly
// check-ins for one user, and keeps the durable snapshot in step with the
// committed in-memory state.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fitgenius-bot/internal/gateway"
	"fitgenius-bot/internal/models"
	"fitgenius-bot/pkg/logger"
)

type View string

const (
	ViewLoading        View = "LOADING"
	ViewKeySetup       View = "KEY_SETUP"
	ViewOnboarding     View = "ONBOARDING"
	ViewDashboard      View = "DASHBOARD"
	ViewWorkoutSession View = "WORKOUT_SESSION"
	ViewWeeklyCheckin  View = "WEEKLY_CHECKIN"
)

var (
	ErrWrongView     = errors.New("action not allowed in current view")
	ErrBusy          = errors.New("another request is still running")
	ErrStale         = errors.New("result discarded because the state moved on")
	ErrNoPlan        = errors.New("no plan yet")
	ErrUnknownDay    = errors.New("no routine for that day")
	ErrRestDay       = errors.New("rest day has no workout")
	ErrWeekMismatch  = errors.New("feedback is for a different week")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrKeysFixed     = errors.New("credentials cannot be changed at runtime")
)

// Generator is the gateway contract the machine depends on.
type Generator interface {
	HasCredentials() bool
	GeneratePlan(ctx context.Context, profile *models.UserProfile, week int, feedback *models.WeeklyFeedback, progress gateway.ProgressFunc) (*models.FitnessPlan, error)
	RegenerateDiet(ctx context.Context, profile *models.UserProfile) ([]models.DailyDiet, error)
	AskAssistant(ctx context.Context, profile *models.UserProfile, diet *models.DailyDiet, routine *models.DailyRoutine, question string) (string, error)
}

// KeyProvisioner is implemented by generators whose credentials can be
// replaced while running.
type KeyProvisioner interface {
	SetCredentials(keys []string)
}

// State is a read-only copy of the machine for rendering.
type State struct {
	View          View
	Profile       *models.UserProfile
	Plan          *models.FitnessPlan
	ActiveRoutine *models.DailyRoutine
	PlanBusy      bool
	DietBusy      bool
	Progress      string
	LastError     error
}

// Machine is safe for concurrent use. The lock is never held across a
// gateway call; results are applied only if the machine is still where the
// call started.
type Machine struct {
	mu      sync.Mutex
	gen     Generator
	persist *Persister
	logger  *logger.Logger
	onProg  func(string)

	view     View
	profile  *models.UserProfile
	plan     *models.FitnessPlan
	active   *models.DailyRoutine
	progress string
	lastErr  error

	// epoch moves on every view transition and reset; planSeq on every
	// whole-plan replacement and reset.
	epoch   uint64
	planSeq uint64

	nextOp uint64
	planOp uint64
	dietOp uint64
}

type Option func(*Machine)

func WithLogger(l *logger.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithProgress forwards gateway progress strings to the UI.
func WithProgress(fn func(string)) Option {
	return func(m *Machine) { m.onProg = fn }
}

func NewMachine(gen Generator, persist *Persister, opts ...Option) *Machine {
	m := &Machine{
		gen:     gen,
		persist: persist,
		logger:  logger.NewNop(),
		view:    ViewLoading,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		View:          m.view,
		Profile:       m.profile.Clone(),
		Plan:          m.plan.Clone(),
		ActiveRoutine: cloneRoutine(m.active),
		PlanBusy:      m.planOp != 0,
		DietBusy:      m.dietOp != 0,
		Progress:      m.progress,
		LastError:     m.lastErr,
	}
}

func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Start leaves Loading (or KeySetup once keys were provisioned). Without
// credentials it parks in KeySetup. A stored snapshot restores the
// Dashboard; a missing or unreadable one leads to Onboarding. A store
// failure keeps the machine in Loading so Start can be retried.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view != ViewLoading && m.view != ViewKeySetup {
		return m.wrongView("start")
	}

	if !m.gen.HasCredentials() {
		m.transition(ViewKeySetup)
		return nil
	}

	snap, err := m.persist.Load(ctx)
	if err != nil {
		// the stored plan may still be there; onboarding now would overwrite it
		m.logger.Errorw("Failed to load snapshot", "error", err)
		m.transition(ViewLoading)
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		m.transition(ViewOnboarding)
		return nil
	}

	m.profile = snap.UserProfile
	m.plan = snap.FitnessPlan
	m.planSeq++
	m.transition(ViewDashboard)
	return nil
}

// ConfigureKeys installs credentials from KeySetup and reruns Start.
func (m *Machine) ConfigureKeys(ctx context.Context, keys []string) error {
	m.mu.Lock()
	if m.view != ViewKeySetup {
		defer m.mu.Unlock()
		return m.wrongView("configure keys")
	}
	kp, ok := m.gen.(KeyProvisioner)
	if !ok {
		m.mu.Unlock()
		return ErrKeysFixed
	}
	kp.SetCredentials(keys)
	m.transition(ViewLoading)
	m.mu.Unlock()

	return m.Start(ctx)
}

// CompleteOnboarding generates the first week's plan for profile. Nothing is
// committed or persisted unless generation succeeds.
func (m *Machine) CompleteOnboarding(ctx context.Context, profile *models.UserProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.view != ViewOnboarding {
		defer m.mu.Unlock()
		return m.wrongView("complete onboarding")
	}
	if m.planOp != 0 {
		m.mu.Unlock()
		return ErrBusy
	}
	op, epoch := m.beginPlanOp()
	candidate := profile.Clone()
	m.mu.Unlock()

	plan, genErr := m.gen.GeneratePlan(ctx, candidate.Clone(), 1, nil, m.progressFor(op))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.endPlanOp(op)
	if m.epoch != epoch || m.view != ViewOnboarding {
		m.logger.Infow("Discarding onboarding plan", "view", m.view)
		return ErrStale
	}
	if genErr != nil {
		m.lastErr = genErr
		return genErr
	}
	if err := m.commit(ctx, candidate, plan); err != nil {
		return err
	}
	m.planSeq++
	m.transition(ViewDashboard)
	m.logger.Infow("Onboarding complete", "week", plan.WeekNumber)
	return nil
}

// StartWorkout activates the routine for day. No persistence happens here.
func (m *Machine) StartWorkout(day int) (*models.DailyRoutine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view != ViewDashboard {
		return nil, m.wrongView("start workout")
	}
	if m.plan == nil {
		return nil, ErrNoPlan
	}
	routine, ok := m.plan.RoutineForDay(day)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDay, day)
	}
	if routine.IsRestDay {
		return nil, ErrRestDay
	}
	m.active = cloneRoutine(routine)
	m.transition(ViewWorkoutSession)
	return cloneRoutine(m.active), nil
}

// CompleteWorkout flips the active routine's completion flag, persists and
// returns to the Dashboard. Nothing else in the plan changes.
func (m *Machine) CompleteWorkout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view != ViewWorkoutSession || m.active == nil {
		return m.wrongView("complete workout")
	}

	updated := m.plan.Clone()
	routine, ok := updated.RoutineForDay(m.active.DayNumber)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDay, m.active.DayNumber)
	}
	routine.IsCompleted = true

	if err := m.commit(ctx, m.profile, updated); err != nil {
		return err
	}
	m.logger.Infow("Workout completed", "day", m.active.DayNumber, "week", updated.WeekNumber)
	m.active = nil
	m.transition(ViewDashboard)
	return nil
}

// CancelWorkout leaves the session without recording anything.
func (m *Machine) CancelWorkout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view != ViewWorkoutSession {
		return m.wrongView("cancel workout")
	}
	m.active = nil
	m.transition(ViewDashboard)
	return nil
}

func (m *Machine) FinishWeek() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view != ViewDashboard {
		return m.wrongView("finish week")
	}
	if m.plan == nil {
		return ErrNoPlan
	}
	m.transition(ViewWeeklyCheckin)
	return nil
}

// CancelCheckin goes back to the Dashboard without submitting feedback.
func (m *Machine) CancelCheckin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view != ViewWeeklyCheckin {
		return m.wrongView("cancel check-in")
	}
	if m.planOp != 0 {
		return ErrBusy
	}
	m.transition(ViewDashboard)
	return nil
}

// SubmitFeedback generates next week's plan from the reported weight and
// feedback. The profile weight change is committed only together with the
// new plan; on failure the machine stays in WeeklyCheckin untouched.
func (m *Machine) SubmitFeedback(ctx context.Context, feedback models.WeeklyFeedback) error {
	m.mu.Lock()
	if m.view != ViewWeeklyCheckin {
		defer m.mu.Unlock()
		return m.wrongView("submit feedback")
	}
	if m.planOp != 0 {
		m.mu.Unlock()
		return ErrBusy
	}
	if feedback.WeekCompleted == 0 {
		feedback.WeekCompleted = m.plan.WeekNumber
	}
	if feedback.WeekCompleted != m.plan.WeekNumber {
		m.mu.Unlock()
		return fmt.Errorf("%w: got %d, current week is %d", ErrWeekMismatch, feedback.WeekCompleted, m.plan.WeekNumber)
	}
	if err := feedback.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}

	updated := m.profile.Clone()
	updated.Weight = feedback.CurrentWeight
	op, epoch := m.beginPlanOp()
	m.mu.Unlock()

	fb := feedback
	plan, genErr := m.gen.GeneratePlan(ctx, updated.Clone(), feedback.WeekCompleted+1, &fb, m.progressFor(op))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.endPlanOp(op)
	if m.epoch != epoch || m.view != ViewWeeklyCheckin {
		m.logger.Infow("Discarding next-week plan", "view", m.view)
		return ErrStale
	}
	if genErr != nil {
		m.lastErr = genErr
		return genErr
	}
	if err := m.commit(ctx, updated, plan); err != nil {
		return err
	}
	m.planSeq++
	m.transition(ViewDashboard)
	m.logger.Infow("New week generated", "week", plan.WeekNumber, "weight", updated.Weight)
	return nil
}

// RegenerateDiet swaps only the plan's diet. The view does not change; on
// failure the existing diet stays.
func (m *Machine) RegenerateDiet(ctx context.Context) error {
	m.mu.Lock()
	if m.view != ViewDashboard {
		defer m.mu.Unlock()
		return m.wrongView("regenerate diet")
	}
	if m.plan == nil {
		m.mu.Unlock()
		return ErrNoPlan
	}
	if m.dietOp != 0 {
		m.mu.Unlock()
		return ErrBusy
	}
	m.nextOp++
	op := m.nextOp
	m.dietOp = op
	seq := m.planSeq
	profile := m.profile.Clone()
	m.mu.Unlock()

	diet, genErr := m.gen.RegenerateDiet(ctx, profile)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dietOp == op {
		m.dietOp = 0
	}
	if m.planSeq != seq || m.view != ViewDashboard {
		m.logger.Infow("Discarding regenerated diet", "view", m.view)
		return ErrStale
	}
	if genErr != nil {
		m.lastErr = genErr
		return genErr
	}

	updated := m.plan.Clone()
	updated.Diet = diet
	if err := m.commit(ctx, m.profile, updated); err != nil {
		return err
	}
	m.logger.Infow("Diet regenerated", "week", updated.WeekNumber)
	return nil
}

// Reset wipes the stored snapshot and in-memory state and returns to
// Onboarding. Confirmation is the caller's job. In-flight results are
// discarded when they arrive.
func (m *Machine) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view == ViewLoading || m.view == ViewKeySetup {
		return m.wrongView("reset")
	}
	if err := m.persist.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	m.profile = nil
	m.plan = nil
	m.active = nil
	m.lastErr = nil
	m.planOp = 0
	m.dietOp = 0
	m.planSeq++
	m.transition(ViewOnboarding)
	m.logger.Infow("State reset")
	return nil
}

// Ask forwards a question to the assistant with the routine and diet of day
// (0 means the first incomplete day).
func (m *Machine) Ask(ctx context.Context, day int, question string) (string, error) {
	if question == "" {
		return "", ErrEmptyQuestion
	}
	m.mu.Lock()
	if m.profile == nil || m.plan == nil {
		m.mu.Unlock()
		return "", ErrNoPlan
	}
	if day == 0 {
		day = m.plan.FirstIncompleteDay()
	}
	profile := m.profile.Clone()
	var routine *models.DailyRoutine
	var diet *models.DailyDiet
	if r, ok := m.plan.RoutineForDay(day); ok {
		routine = cloneRoutine(r)
	}
	if d, ok := m.plan.DietForDay(day); ok {
		cp := models.CloneDiet([]models.DailyDiet{*d})[0]
		diet = &cp
	}
	m.mu.Unlock()

	return m.gen.AskAssistant(ctx, profile, diet, routine, question)
}

// commit persists first and only then swaps the in-memory pair, so the store
// always holds the last successfully committed state.
func (m *Machine) commit(ctx context.Context, profile *models.UserProfile, plan *models.FitnessPlan) error {
	if err := m.persist.Save(ctx, profile, plan); err != nil {
		m.logger.Errorw("Failed to persist state", "error", err)
		m.lastErr = err
		return err
	}
	m.profile = profile
	m.plan = plan
	m.lastErr = nil
	return nil
}

func (m *Machine) transition(to View) {
	if m.view != to {
		m.logger.Debugw("View transition", "from", m.view, "to", to)
	}
	m.view = to
	m.epoch++
}

func (m *Machine) beginPlanOp() (op, epoch uint64) {
	m.nextOp++
	m.planOp = m.nextOp
	m.progress = ""
	m.lastErr = nil
	return m.planOp, m.epoch
}

func (m *Machine) endPlanOp(op uint64) {
	if m.planOp == op {
		m.planOp = 0
		m.progress = ""
	}
}

func (m *Machine) progressFor(op uint64) gateway.ProgressFunc {
	return func(msg string) {
		m.mu.Lock()
		current := m.planOp == op
		if current {
			m.progress = msg
		}
		m.mu.Unlock()
		if current && m.onProg != nil {
			m.onProg(msg)
		}
	}
}

func (m *Machine) wrongView(action string) error {
	return fmt.Errorf("%w: cannot %s in %s", ErrWrongView, action, m.view)
}

func cloneRoutine(r *models.DailyRoutine) *models.DailyRoutine {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Exercises = models.CloneExercises(r.Exercises)
	return &cp
}

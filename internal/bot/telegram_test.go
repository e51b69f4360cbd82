package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fitgenius-bot/internal/app"
	"fitgenius-bot/internal/gateway"
	"fitgenius-bot/internal/models"
	"fitgenius-bot/internal/store"
	"fitgenius-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakeGen struct {
	mu      sync.Mutex
	keys    []string
	weeks   []int
	planErr error
}

func (f *fakeGen) HasCredentials() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys) > 0
}

func (f *fakeGen) SetCredentials(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = keys
}

func (f *fakeGen) GeneratePlan(_ context.Context, _ *models.UserProfile, week int, _ *models.WeeklyFeedback, progress gateway.ProgressFunc) (*models.FitnessPlan, error) {
	f.mu.Lock()
	f.weeks = append(f.weeks, week)
	f.mu.Unlock()
	if progress != nil {
		progress("Menyusun rencana...")
	}
	if f.planErr != nil {
		return nil, f.planErr
	}
	return testPlan(week), nil
}

func (f *fakeGen) RegenerateDiet(context.Context, *models.UserProfile) ([]models.DailyDiet, error) {
	return testDiet("Tahu bacem"), nil
}

func (f *fakeGen) AskAssistant(_ context.Context, _ *models.UserProfile, _ *models.DailyDiet, _ *models.DailyRoutine, q string) (string, error) {
	return "Jawaban untuk: " + q, nil
}

func testDiet(menu string) []models.DailyDiet {
	m := &models.Meal{Time: "07:00", Menu: menu, Calories: 400}
	diet := make([]models.DailyDiet, 0, models.DaysPerWeek)
	for d := 1; d <= models.DaysPerWeek; d++ {
		diet = append(diet, models.DailyDiet{DayNumber: d, TotalCalories: 1600, Meals: models.Meals{Breakfast: m, Lunch: m, Dinner: m, Snack1: m}})
	}
	return diet
}

func testPlan(week int) *models.FitnessPlan {
	plan := &models.FitnessPlan{WeekNumber: week, Overview: "Fokus adaptasi", Diet: testDiet("Nasi merah"), CreatedAt: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)}
	for d := 1; d <= models.DaysPerWeek; d++ {
		r := models.DailyRoutine{DayNumber: d, Title: fmt.Sprintf("Latihan %d", d), FocusArea: "Kaki", EstimatedDurationMin: 40}
		if d == 7 {
			r.IsRestDay = true
		} else {
			r.Exercises = []models.Exercise{{Name: "Lunges", Reps: 10, Sets: 3, RestSeconds: 45}}
		}
		plan.Routines = append(plan.Routines, r)
	}
	return plan
}

func testProfile() *models.UserProfile {
	return &models.UserProfile{Name: "Siti", Age: 28, Gender: models.GenderFemale, Height: 160, Weight: 70, TargetWeight: 60,
		Goal: models.GoalAbs, Equipment: []models.Equipment{models.EquipmentNone}, DietBudget: models.BudgetMedium}
}

func newTestBot(gen *fakeGen, st store.Store) (*TelegramBot, *fakeSender) {
	out := &fakeSender{}
	b := newTelegramBot(out, "fitgenius_bot", Options{KeyPrefix: "fitgenius_data_v4"}, gen, st, nil, logger.NewNop())
	return b, out
}

const testUserID = 1001

func text(s string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testUserID},
		Chat:      &tgbotapi.Chat{ID: testUserID},
		Text:      s,
	}
}

func command(s string) *tgbotapi.Message {
	msg := text(s)
	name := strings.SplitN(s, " ", 2)[0]
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}}
	return msg
}

func onboardingAnswers() []string {
	return []string{
		"Siti Rahma", "28", btnFemale, "160", "70,5", "60", "0.5",
		models.GoalWeightLoss.Label(),
		models.EquipmentDumbbells.Label(), btnDone,
		models.BudgetCheap.Label(),
		btnNothing, btnNo, btnHealthy,
		btnConfirm,
	}
}

func (t *TelegramBot) machineFor(id int64) *app.Machine {
	t.sessionMutex.RLock()
	defer t.sessionMutex.RUnlock()
	return t.sessions[id].machine
}

func TestBot_OnboardingToDashboard(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	gen := &fakeGen{keys: []string{"k1"}}
	b, out := newTestBot(gen, st)

	b.handleCommand(ctx, command("/start"))
	assert.Contains(t, out.last(), "Siapa nama lengkapmu")

	for _, answer := range onboardingAnswers() {
		b.handleMessage(ctx, text(answer))
	}

	m := b.machineFor(testUserID)
	state := m.State()
	require.Equal(t, app.ViewDashboard, state.View)
	assert.Equal(t, 70.5, state.Profile.Weight)
	assert.Equal(t, []models.Equipment{models.EquipmentDumbbells}, state.Profile.Equipment)
	assert.Equal(t, []int{1}, gen.weeks)
	assert.Contains(t, out.texts(), "Menyusun rencana...")
	assert.Contains(t, out.last(), "Minggu ke-1")

	_, err := st.Get(ctx, "fitgenius_data_v4:1001")
	assert.NoError(t, err)
}

func TestBot_OnboardingFailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGen{keys: []string{"k1"}, planErr: &gateway.Error{Kind: gateway.KindQuotaExceeded, Exhausted: true, Attempts: 1}}
	b, out := newTestBot(gen, store.NewMemoryStore())

	b.handleCommand(ctx, command("/start"))
	for _, answer := range onboardingAnswers() {
		b.handleMessage(ctx, text(answer))
	}

	assert.Equal(t, app.ViewOnboarding, b.machineFor(testUserID).View())
	assert.Contains(t, strings.Join(out.texts(), "\n"), "Kuota semua API key")
	assert.Contains(t, out.last(), "Sudah benar?")

	gen.planErr = nil
	b.handleMessage(ctx, text(btnConfirm))
	assert.Equal(t, app.ViewDashboard, b.machineFor(testUserID).View())
}

func TestBot_KeySetup(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGen{}
	b, out := newTestBot(gen, store.NewMemoryStore())

	b.handleCommand(ctx, command("/start"))
	assert.Contains(t, out.last(), "Belum ada API key")

	b.handleMessage(ctx, text("key-a, key-b"))

	assert.Equal(t, []string{"key-a", "key-b"}, gen.keys)
	assert.Equal(t, app.ViewOnboarding, b.machineFor(testUserID).View())
	assert.Contains(t, out.last(), "Siapa nama lengkapmu")
	require.NotEmpty(t, out.requests)
	_, deleted := out.requests[0].(tgbotapi.DeleteMessageConfig)
	assert.True(t, deleted, "the message carrying keys is deleted")
}

func TestBot_WorkoutAndCheckin(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	gen := &fakeGen{keys: []string{"k1"}}
	b, out := newTestBot(gen, st)
	b.handleCommand(ctx, command("/start"))
	for _, answer := range onboardingAnswers() {
		b.handleMessage(ctx, text(answer))
	}

	b.handleCommand(ctx, command("/workout 2"))
	assert.Contains(t, out.last(), "Latihan 2")
	b.handleCommand(ctx, command("/done"))

	plan := b.machineFor(testUserID).State().Plan
	assert.True(t, plan.Routines[1].IsCompleted)
	assert.Contains(t, out.texts(), "Mantap! Latihan hari 2 tercatat 💪")

	b.handleCommand(ctx, command("/workout 7"))
	assert.Equal(t, app.UserMessage(app.ErrRestDay), out.last())

	b.handleCommand(ctx, command("/finishweek"))
	assert.Contains(t, out.last(), "Check-in minggu ke-1")
	b.handleMessage(ctx, text("69"))
	b.handleMessage(ctx, text(btnTooHard))
	b.handleMessage(ctx, text("lutut pegal"))

	state := b.machineFor(testUserID).State()
	assert.Equal(t, app.ViewDashboard, state.View)
	assert.Equal(t, 2, state.Plan.WeekNumber)
	assert.Equal(t, 69.0, state.Profile.Weight)
	assert.Equal(t, []int{1, 2}, gen.weeks)
}

func TestBot_ResetNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	b, _ := newTestBot(&fakeGen{keys: []string{"k1"}}, st)
	b.handleCommand(ctx, command("/start"))
	for _, answer := range onboardingAnswers() {
		b.handleMessage(ctx, text(answer))
	}

	b.handleCommand(ctx, command("/reset"))
	assert.Equal(t, app.ViewDashboard, b.machineFor(testUserID).View())

	cb := &tgbotapi.CallbackQuery{ID: "cb1", From: &tgbotapi.User{ID: testUserID}, Message: text(""), Data: "reset:yes"}
	b.handleCallbackQuery(ctx, cb)

	assert.Equal(t, app.ViewOnboarding, b.machineFor(testUserID).View())
	_, err := st.Get(ctx, "fitgenius_data_v4:1001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBot_RestoresSessionFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	persister := app.NewPersister(st, app.StorageKey("fitgenius_data_v4", testUserID), nil)
	require.NoError(t, persister.Save(ctx, testProfile(), testPlan(5)))

	b, out := newTestBot(&fakeGen{keys: []string{"k1"}}, st)
	b.handleCommand(ctx, command("/plan"))

	assert.Contains(t, out.last(), "Minggu ke-5")
}

func TestBot_FreeTextOnDashboardAsksAssistant(t *testing.T) {
	ctx := context.Background()
	b, out := newTestBot(&fakeGen{keys: []string{"k1"}}, store.NewMemoryStore())
	b.handleCommand(ctx, command("/start"))
	for _, answer := range onboardingAnswers() {
		b.handleMessage(ctx, text(answer))
	}

	b.handleMessage(ctx, text("boleh minum kopi?"))

	assert.Equal(t, "Jawaban untuk: boleh minum kopi?", out.last())
}

type flakyStore struct {
	*store.MemoryStore
	mu   sync.Mutex
	down bool
}

func (f *flakyStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return nil, errors.New("conn refused")
	}
	return f.MemoryStore.Get(ctx, key)
}

func TestBot_StoreOutageRetriesRestore(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	persister := app.NewPersister(mem, app.StorageKey("fitgenius_data_v4", testUserID), nil)
	require.NoError(t, persister.Save(ctx, testProfile(), testPlan(4)))
	st := &flakyStore{MemoryStore: mem, down: true}
	b, out := newTestBot(&fakeGen{keys: []string{"k1"}}, st)

	b.handleCommand(ctx, command("/start"))
	assert.Equal(t, app.ViewLoading, b.machineFor(testUserID).View())
	assert.Contains(t, out.last(), "belum bisa dimuat")

	b.handleMessage(ctx, text("Siti"))
	assert.Equal(t, app.ViewLoading, b.machineFor(testUserID).View())

	st.setDown(false)
	b.handleCommand(ctx, command("/plan"))

	assert.Equal(t, app.ViewDashboard, b.machineFor(testUserID).View())
	assert.Contains(t, out.last(), "Minggu ke-4")
}

package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"fitgenius-bot/internal/app"
	"fitgenius-bot/internal/gateway"
	"fitgenius-bot/internal/models"
	"fitgenius-bot/internal/payment"
	"fitgenius-bot/internal/store"
	"fitgenius-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `FitGenius membantu menyusun program latihan dan menu makan mingguan.

/start mulai atau lanjutkan
/plan ringkasan minggu ini
/today latihan dan menu hari ini
/day N detail hari ke-N
/workout N mulai latihan hari ke-N
/done tandai latihan selesai
/cancel batalkan latihan atau check-in
/finishweek check-in akhir minggu
/diet susun ulang menu makan
/ask pertanyaan untuk coach AI
/keys KEY1,KEY2 pasang API key
/reset hapus semua data`

type Options struct {
	Token             string
	Debug             bool
	KeyPrefix         string
	GenerationTimeout time.Duration
}

// sender is the part of the Bot API the handlers talk to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// session is one Telegram user's machine plus the conversation in progress.
type session struct {
	mu         sync.Mutex
	chatID     int64
	machine    *app.Machine
	onboarding *onboarding
	checkin    *checkin
	pending    *models.UserProfile
}

type TelegramBot struct {
	api          *tgbotapi.BotAPI
	out          sender
	username     string
	gen          app.Generator
	store        store.Store
	keyPrefix    string
	genTimeout   time.Duration
	stripeClient *payment.StripeClient
	logger       *logger.Logger
	sessions     map[int64]*session
	sessionMutex sync.RWMutex
}

func NewTelegramBot(opts Options, gen app.Generator, st store.Store, stripeClient *payment.StripeClient, logger *logger.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	api.Debug = opts.Debug

	logger.Infow("Authorized on Telegram", "username", api.Self.UserName)

	t := newTelegramBot(api, api.Self.UserName, opts, gen, st, stripeClient, logger)
	t.api = api
	return t, nil
}

func newTelegramBot(out sender, username string, opts Options, gen app.Generator, st store.Store, stripeClient *payment.StripeClient, logger *logger.Logger) *TelegramBot {
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 6 * time.Minute
	}
	return &TelegramBot{
		out:          out,
		username:     username,
		gen:          gen,
		store:        st,
		keyPrefix:    opts.KeyPrefix,
		genTimeout:   opts.GenerationTimeout,
		stripeClient: stripeClient,
		logger:       logger,
		sessions:     make(map[int64]*session),
	}
}

// Start begins receiving updates from Telegram via polling
func (t *TelegramBot) Start(ctx context.Context) error {
	// Polling does not work while a webhook is registered
	t.logger.Infow("Removing any existing webhook")
	_, err := t.api.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := t.api.GetUpdatesChan(updateConfig)

	t.logger.Infow("Started receiving Telegram updates")

	go t.handleUpdates(ctx, updates)

	return nil
}

func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		go func(update tgbotapi.Update) {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Errorw("Recovered from panic while processing update", "error", r)
				}
			}()
			t.handleUpdate(ctx, update)
		}(update)
	}
}

func (t *TelegramBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		t.logger.Debugw("Received message",
			"update_id", update.UpdateID,
			"chat_id", update.Message.Chat.ID,
			"from", update.Message.From.UserName)

		if update.Message.IsCommand() {
			t.handleCommand(ctx, update.Message)
		} else {
			t.handleMessage(ctx, update.Message)
		}
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// sessionFor returns the user's session, restoring the machine from the
// store on first contact.
func (t *TelegramBot) sessionFor(ctx context.Context, userID, chatID int64) *session {
	t.sessionMutex.RLock()
	s, ok := t.sessions[userID]
	t.sessionMutex.RUnlock()
	if ok {
		t.refresh(ctx, s)
		return s
	}

	t.sessionMutex.Lock()
	defer t.sessionMutex.Unlock()
	if s, ok := t.sessions[userID]; ok {
		return s
	}

	l := t.logger.With("user_id", userID)
	s = &session{chatID: chatID}
	s.machine = app.NewMachine(
		t.gen,
		app.NewPersister(t.store, app.StorageKey(t.keyPrefix, userID), l),
		app.WithLogger(l),
		app.WithProgress(func(msg string) { t.send(chatID, msg) }),
	)
	if err := s.machine.Start(ctx); err != nil {
		l.Errorw("Failed to restore session", "error", err)
	}
	t.sessions[userID] = s
	return s
}

// refresh retries Start for machines left in Loading by a store failure and
// moves machines out of KeySetup once another user provisioned keys.
func (t *TelegramBot) refresh(ctx context.Context, s *session) {
	view := s.machine.View()
	if view == app.ViewLoading || (view == app.ViewKeySetup && t.gen.HasCredentials()) {
		if err := s.machine.Start(ctx); err != nil {
			t.logger.Errorw("Failed to restart session", "error", err)
		}
	}
}

func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	args := strings.TrimSpace(message.CommandArguments())
	userID := message.From.ID

	t.logger.Infow("Handling command", "command", command, "user_id", userID)

	s := t.sessionFor(ctx, userID, message.Chat.ID)

	switch command {
	case "start":
		t.cmdStart(s, args)
	case "plan":
		t.cmdPlan(s)
	case "today":
		t.cmdDay(s, 0)
	case "day":
		day, err := strconv.Atoi(args)
		if err != nil {
			t.send(s.chatID, "Gunakan /day 1 sampai /day 7.")
			return
		}
		t.cmdDay(s, day)
	case "workout":
		t.cmdWorkout(s, args)
	case "done":
		t.cmdDone(ctx, s)
	case "cancel":
		t.cmdCancel(s)
	case "finishweek":
		t.cmdFinishWeek(s)
	case "diet":
		t.cmdDiet(ctx, s)
	case "ask":
		t.cmdAsk(ctx, s, args)
	case "keys":
		t.cmdKeys(ctx, s, args, message.MessageID)
	case "reset":
		t.cmdReset(s)
	case "help":
		t.send(s.chatID, helpText)
	default:
		t.send(s.chatID, "Perintah tidak dikenal. Ketik /help.")
	}
}

// handleMessage routes free text by view: onboarding and check-in answers,
// pasted keys, or a question for the assistant.
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	s := t.sessionFor(ctx, message.From.ID, message.Chat.ID)
	text := message.Text

	switch s.machine.View() {
	case app.ViewKeySetup:
		t.cmdKeys(ctx, s, text, message.MessageID)

	case app.ViewOnboarding:
		s.mu.Lock()
		if s.pending != nil {
			s.mu.Unlock()
			t.send(s.chatID, "Selesaikan pembayaran lewat tombol di atas terlebih dahulu.")
			return
		}
		if s.onboarding == nil {
			s.onboarding = newOnboarding()
		}
		reply, done := s.onboarding.handle(text)
		var profile *models.UserProfile
		if done {
			profile = s.onboarding.Profile()
		}
		s.mu.Unlock()

		t.ask(s.chatID, reply)
		if done {
			t.finishOnboarding(ctx, s, message.From.ID, profile)
		}

	case app.ViewWeeklyCheckin:
		s.mu.Lock()
		if s.checkin == nil {
			s.checkin = newCheckin(0)
		}
		reply, done := s.checkin.handle(text)
		feedback := s.checkin.feedback
		s.mu.Unlock()

		t.ask(s.chatID, reply)
		if done {
			t.submitFeedback(ctx, s, feedback)
		}

	case app.ViewDashboard, app.ViewWorkoutSession:
		t.cmdAsk(ctx, s, text)

	default:
		t.render(s)
	}
}

func (t *TelegramBot) handleCallbackQuery(ctx context.Context, callbackQuery *tgbotapi.CallbackQuery) {
	t.logger.Debugw("Received callback query",
		"from", callbackQuery.From.UserName,
		"data", callbackQuery.Data)

	if _, err := t.out.Request(tgbotapi.NewCallback(callbackQuery.ID, "")); err != nil {
		t.logger.Warnw("Failed to acknowledge callback", "error", err)
	}

	chatID := callbackQuery.From.ID
	if callbackQuery.Message != nil {
		chatID = callbackQuery.Message.Chat.ID
	}
	s := t.sessionFor(ctx, callbackQuery.From.ID, chatID)

	switch callbackQuery.Data {
	case "reset:yes":
		if err := s.machine.Reset(ctx); err != nil {
			t.fail(s, err)
			return
		}
		s.mu.Lock()
		s.onboarding = newOnboarding()
		s.checkin = nil
		s.pending = nil
		s.mu.Unlock()
		t.send(s.chatID, "Semua data sudah dihapus. Kita mulai dari awal.")
		t.render(s)
	case "reset:no":
		t.send(s.chatID, "Reset dibatalkan.")
	}
}

func (t *TelegramBot) cmdStart(s *session, args string) {
	switch args {
	case "payment_success":
		t.send(s.chatID, "Terima kasih! Pembayaran sedang dikonfirmasi, rencanamu akan segera dikirim.")
		return
	case "payment_cancel":
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		t.send(s.chatID, "Pembayaran dibatalkan. Kamu bisa mencoba lagi kapan saja.")
	}
	t.render(s)
}

// render shows whatever the current view expects from the user.
func (t *TelegramBot) render(s *session) {
	state := s.machine.State()
	switch state.View {
	case app.ViewKeySetup:
		t.ask(s.chatID, prompt{text: "Belum ada API key yang terpasang. Kirim API key kamu (pisahkan dengan koma untuk beberapa key)."})
	case app.ViewOnboarding:
		s.mu.Lock()
		if s.onboarding == nil {
			s.onboarding = newOnboarding()
		}
		p := s.onboarding.current()
		s.mu.Unlock()
		t.ask(s.chatID, p)
	case app.ViewDashboard:
		t.ask(s.chatID, prompt{text: formatOverview(state.Plan)})
	case app.ViewWorkoutSession:
		t.ask(s.chatID, workoutPrompt(state.ActiveRoutine))
	case app.ViewWeeklyCheckin:
		s.mu.Lock()
		if s.checkin == nil {
			s.checkin = newCheckin(state.Plan.WeekNumber)
		}
		p := s.checkin.current()
		s.mu.Unlock()
		t.ask(s.chatID, p)
	default:
		t.send(s.chatID, "Data kamu belum bisa dimuat. Coba lagi sebentar.")
	}
}

func (t *TelegramBot) finishOnboarding(ctx context.Context, s *session, userID int64, profile *models.UserProfile) {
	if t.stripeClient != nil {
		t.requestPayment(s, userID, profile)
		return
	}
	t.completeOnboarding(ctx, s, profile)
}

func (t *TelegramBot) completeOnboarding(ctx context.Context, s *session, profile *models.UserProfile) {
	ctx, cancel := context.WithTimeout(ctx, t.genTimeout)
	defer cancel()

	if err := s.machine.CompleteOnboarding(ctx, profile); err != nil {
		t.logger.Warnw("Failed to generate first plan", "error", err)
		t.fail(s, err)
		s.mu.Lock()
		var retry *prompt
		if s.onboarding != nil {
			p := s.onboarding.current()
			retry = &p
		}
		s.mu.Unlock()
		if retry != nil {
			t.ask(s.chatID, *retry)
		}
		return
	}

	s.mu.Lock()
	s.onboarding = nil
	s.mu.Unlock()
	t.render(s)
}

func (t *TelegramBot) requestPayment(s *session, userID int64, profile *models.UserProfile) {
	successURL := fmt.Sprintf("https://t.me/%s?start=payment_success", t.username)
	cancelURL := fmt.Sprintf("https://t.me/%s?start=payment_cancel", t.username)

	sessionID, checkoutURL, err := t.stripeClient.CreateCheckoutSession(userID, successURL, cancelURL)
	if err != nil {
		t.logger.Errorw("Failed to create Stripe session", "error", err, "user_id", userID)
		t.send(s.chatID, "Maaf, gagal membuat sesi pembayaran. Silakan coba lagi nanti.")
		return
	}

	s.mu.Lock()
	s.pending = profile
	s.mu.Unlock()
	t.logger.Infow("Checkout session created", "user_id", userID, "session_id", sessionID)

	msg := tgbotapi.NewMessage(s.chatID, "Tekan tombol di bawah untuk membayar. Rencana pertamamu dibuat setelah pembayaran berhasil.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Bayar", checkoutURL),
		),
	)
	t.deliver(msg)
}

func (t *TelegramBot) submitFeedback(ctx context.Context, s *session, feedback models.WeeklyFeedback) {
	ctx, cancel := context.WithTimeout(ctx, t.genTimeout)
	defer cancel()

	if err := s.machine.SubmitFeedback(ctx, feedback); err != nil {
		t.logger.Warnw("Failed to generate next week", "error", err, "week", feedback.WeekCompleted)
		t.fail(s, err)
		if s.machine.View() == app.ViewWeeklyCheckin {
			t.send(s.chatID, "Kirim catatanmu lagi untuk mencoba ulang, atau /cancel.")
		}
		return
	}

	s.mu.Lock()
	s.checkin = nil
	s.mu.Unlock()
	t.render(s)
}

func (t *TelegramBot) cmdPlan(s *session) {
	state := s.machine.State()
	if state.Plan == nil {
		t.fail(s, app.ErrNoPlan)
		return
	}
	t.send(s.chatID, formatOverview(state.Plan))
}

// cmdDay shows one day; 0 means the first incomplete day.
func (t *TelegramBot) cmdDay(s *session, day int) {
	state := s.machine.State()
	if state.Plan == nil {
		t.fail(s, app.ErrNoPlan)
		return
	}
	if day == 0 {
		day = state.Plan.FirstIncompleteDay()
	}
	text, ok := formatDay(state.Plan, day)
	if !ok {
		t.fail(s, app.ErrUnknownDay)
		return
	}
	t.send(s.chatID, text)
}

func (t *TelegramBot) cmdWorkout(s *session, args string) {
	day := 0
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil {
			t.send(s.chatID, "Gunakan /workout 1 sampai /workout 7.")
			return
		}
		day = n
	}
	if day == 0 {
		if plan := s.machine.State().Plan; plan != nil {
			day = plan.FirstIncompleteDay()
		}
	}

	routine, err := s.machine.StartWorkout(day)
	if err != nil {
		t.fail(s, err)
		return
	}
	t.ask(s.chatID, workoutPrompt(routine))
}

func workoutPrompt(r *models.DailyRoutine) prompt {
	if r == nil {
		return prompt{text: "Tidak ada latihan aktif."}
	}
	return prompt{
		text:     formatRoutine(r) + "\n\nKetik /done jika sudah selesai atau /cancel untuk batal.",
		keyboard: [][]string{{"/done", "/cancel"}},
	}
}

func (t *TelegramBot) cmdDone(ctx context.Context, s *session) {
	active := s.machine.State().ActiveRoutine
	if err := s.machine.CompleteWorkout(ctx); err != nil {
		t.fail(s, err)
		return
	}
	t.ask(s.chatID, prompt{text: fmt.Sprintf("Mantap! Latihan hari %d tercatat 💪", active.DayNumber)})
	t.render(s)
}

func (t *TelegramBot) cmdCancel(s *session) {
	switch s.machine.View() {
	case app.ViewWorkoutSession:
		if err := s.machine.CancelWorkout(); err != nil {
			t.fail(s, err)
			return
		}
	case app.ViewWeeklyCheckin:
		if err := s.machine.CancelCheckin(); err != nil {
			t.fail(s, err)
			return
		}
		s.mu.Lock()
		s.checkin = nil
		s.mu.Unlock()
	default:
		t.send(s.chatID, "Tidak ada yang perlu dibatalkan.")
		return
	}
	t.render(s)
}

func (t *TelegramBot) cmdFinishWeek(s *session) {
	if err := s.machine.FinishWeek(); err != nil {
		t.fail(s, err)
		return
	}
	state := s.machine.State()
	s.mu.Lock()
	s.checkin = newCheckin(state.Plan.WeekNumber)
	p := s.checkin.current()
	s.mu.Unlock()
	t.ask(s.chatID, p)
}

func (t *TelegramBot) cmdDiet(ctx context.Context, s *session) {
	ctx, cancel := context.WithTimeout(ctx, t.genTimeout)
	defer cancel()

	t.send(s.chatID, "Menyusun ulang menu makan minggu ini...")
	if err := s.machine.RegenerateDiet(ctx); err != nil {
		t.fail(s, err)
		return
	}

	plan := s.machine.State().Plan
	if diet, ok := plan.DietForDay(plan.FirstIncompleteDay()); ok {
		t.send(s.chatID, "Menu baru tersimpan! Lihat hari lain dengan /day N.\n\n"+formatDiet(diet))
	}
}

func (t *TelegramBot) cmdAsk(ctx context.Context, s *session, question string) {
	ctx, cancel := context.WithTimeout(ctx, t.genTimeout)
	defer cancel()

	answer, err := s.machine.Ask(ctx, 0, strings.TrimSpace(question))
	if err != nil {
		t.fail(s, err)
		return
	}
	t.send(s.chatID, answer)
}

func (t *TelegramBot) cmdKeys(ctx context.Context, s *session, raw string, messageID int) {
	// keys should not linger in the chat history
	if messageID != 0 {
		if _, err := t.out.Request(tgbotapi.NewDeleteMessage(s.chatID, messageID)); err != nil {
			t.logger.Warnw("Failed to delete key message", "error", err)
		}
	}

	if err := s.machine.ConfigureKeys(ctx, gateway.ParseCredentials(raw)); err != nil {
		t.fail(s, err)
		return
	}
	if s.machine.View() == app.ViewKeySetup {
		t.send(s.chatID, "API key kosong. Kirim minimal satu key.")
		return
	}
	t.send(s.chatID, "API key tersimpan.")
	t.render(s)
}

func (t *TelegramBot) cmdReset(s *session) {
	msg := tgbotapi.NewMessage(s.chatID, "Yakin ingin menghapus profil dan rencana, lalu mulai dari awal?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Ya, reset", "reset:yes"),
			tgbotapi.NewInlineKeyboardButtonData("Batal", "reset:no"),
		),
	)
	t.deliver(msg)
}

func (t *TelegramBot) send(chatID int64, text string) {
	t.deliver(tgbotapi.NewMessage(chatID, text))
}

// ask sends p and replaces the reply keyboard with p's, or removes it.
func (t *TelegramBot) ask(chatID int64, p prompt) {
	msg := tgbotapi.NewMessage(chatID, p.text)
	if len(p.keyboard) > 0 {
		msg.ReplyMarkup = replyKeyboard(p.keyboard)
	} else {
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	t.deliver(msg)
}

func (t *TelegramBot) fail(s *session, err error) {
	t.send(s.chatID, app.UserMessage(err))
}

func (t *TelegramBot) deliver(msg tgbotapi.MessageConfig) {
	if _, err := t.out.Send(msg); err != nil {
		t.logger.Errorw("Failed to send message", "chat_id", msg.ChatID, "error", err)
	}
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	keyboard := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboard = append(keyboard, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	markup := tgbotapi.NewReplyKeyboard(keyboard...)
	markup.ResizeKeyboard = true
	return markup
}

// Stop gracefully shuts down the bot
func (t *TelegramBot) Stop(ctx context.Context) error {
	if t.api != nil {
		t.api.StopReceivingUpdates()
	}

	// Allow time for handlers to complete
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
		return nil
	}
}

package bot

import (
	"fmt"
	"strconv"
	"strings"

	"fitgenius-bot/internal/models"
)

// prompt is one bot reply. A nil keyboard removes any reply keyboard.
type prompt struct {
	text     string
	keyboard [][]string
}

type onboardStep int

const (
	stepName onboardStep = iota
	stepAge
	stepGender
	stepHeight
	stepWeight
	stepTargetWeight
	stepWeeklyTarget
	stepGoal
	stepCustomGoal
	stepEquipment
	stepBudget
	stepMedical
	stepSmoker
	stepHealth
	stepConfirm
)

const (
	btnMale       = "Laki-laki"
	btnFemale     = "Perempuan"
	btnDone       = "Selesai"
	btnNothing    = "Tidak ada"
	btnYes        = "Ya"
	btnNo         = "Tidak"
	btnHealthy    = "Sehat"
	btnConfirm    = "Ya, buat rencana"
	btnRestart    = "Ulangi dari awal"
	selectedMark  = "✅ "
	defaultCustom = "Tujuan Khusus"
)

// onboarding collects a profile one answer at a time.
type onboarding struct {
	step    onboardStep
	profile models.UserProfile
}

func newOnboarding() *onboarding {
	return &onboarding{profile: models.UserProfile{HealthCheckStatus: btnHealthy}}
}

// handle applies one answer. done is set when the user confirmed the summary.
func (o *onboarding) handle(text string) (reply prompt, done bool) {
	text = cleanInput(text)
	p := &o.profile

	switch o.step {
	case stepName:
		if text == "" {
			return o.retry("Nama tidak boleh kosong.")
		}
		p.Name = text
	case stepAge:
		age, err := strconv.Atoi(text)
		if err != nil || age < 10 || age > 100 {
			return o.retry("Masukkan usia dalam tahun, misalnya 28.")
		}
		p.Age = age
	case stepGender:
		switch text {
		case btnMale:
			p.Gender = models.GenderMale
		case btnFemale:
			p.Gender = models.GenderFemale
		default:
			return o.retry("Pilih jenis kelamin dengan tombol di bawah.")
		}
	case stepHeight:
		v, ok := parseNumber(text, 100, 250)
		if !ok {
			return o.retry("Masukkan tinggi badan dalam cm, misalnya 170.")
		}
		p.Height = v
	case stepWeight:
		v, ok := parseNumber(text, 30, 300)
		if !ok {
			return o.retry("Masukkan berat badan dalam kg, misalnya 72.5.")
		}
		p.Weight = v
	case stepTargetWeight:
		v, ok := parseNumber(text, 30, 300)
		if !ok {
			return o.retry("Masukkan target berat badan dalam kg, misalnya 65.")
		}
		p.TargetWeight = v
	case stepWeeklyTarget:
		v, ok := parseNumber(text, 0, 2)
		if !ok {
			return o.retry("Masukkan target per minggu antara 0 dan 2 kg, misalnya 0.5.")
		}
		p.WeeklyTargetKg = v
	case stepGoal:
		goal, ok := goalFromLabel(text)
		if !ok {
			return o.retry("Pilih tujuan dengan tombol di bawah.")
		}
		if goal == models.GoalCustom {
			o.step = stepCustomGoal
			return o.current(), false
		}
		p.Goal = goal
		o.step = stepEquipment
		return o.current(), false
	case stepCustomGoal:
		if text == "" {
			text = defaultCustom
		}
		p.Goal = models.Goal(text)
	case stepEquipment:
		if text == btnDone {
			if len(p.Equipment) == 0 {
				return o.retry("Pilih minimal satu peralatan.")
			}
			break
		}
		eq, ok := equipmentFromLabel(strings.TrimPrefix(text, selectedMark))
		if !ok {
			return o.retry("Pilih peralatan dengan tombol di bawah.")
		}
		p.ToggleEquipment(eq)
		return o.current(), false
	case stepBudget:
		budget, ok := budgetFromLabel(text)
		if !ok {
			return o.retry("Pilih budget dengan tombol di bawah.")
		}
		p.DietBudget = budget
	case stepMedical:
		if strings.EqualFold(text, btnNothing) {
			text = ""
		}
		p.MedicalHistory = text
	case stepSmoker:
		switch text {
		case btnYes:
			p.IsSmoker = true
		case btnNo:
			p.IsSmoker = false
		default:
			return o.retry("Jawab dengan tombol Ya atau Tidak.")
		}
	case stepHealth:
		if text == "" {
			text = btnHealthy
		}
		p.HealthCheckStatus = text
	case stepConfirm:
		switch text {
		case btnConfirm:
			if err := p.Validate(); err != nil {
				return o.retry("Data belum lengkap: " + err.Error())
			}
			return prompt{text: "Siap! Rencana minggu pertamamu sedang disusun..."}, true
		case btnRestart:
			*o = *newOnboarding()
			return o.current(), false
		default:
			return o.retry("Pilih salah satu tombol di bawah.")
		}
	}

	o.step++
	return o.current(), false
}

// Profile returns a copy of the collected profile.
func (o *onboarding) Profile() *models.UserProfile {
	return o.profile.Clone()
}

func (o *onboarding) retry(msg string) (prompt, bool) {
	cur := o.current()
	cur.text = msg + "\n\n" + cur.text
	return cur, false
}

// current is the question for the step the user is on.
func (o *onboarding) current() prompt {
	switch o.step {
	case stepName:
		return prompt{text: "👋 Selamat datang di FitGenius! Siapa nama lengkapmu?"}
	case stepAge:
		return prompt{text: "Berapa usiamu?"}
	case stepGender:
		return prompt{text: "Jenis kelamin?", keyboard: [][]string{{btnMale, btnFemale}}}
	case stepHeight:
		return prompt{text: "Tinggi badan (cm)?"}
	case stepWeight:
		return prompt{text: "Berat badan sekarang (kg)?"}
	case stepTargetWeight:
		return prompt{text: "Target berat badan (kg)?"}
	case stepWeeklyTarget:
		return prompt{text: "Berapa kg per minggu yang ingin dicapai? (misal 0.5)"}
	case stepGoal:
		return prompt{text: "Apa tujuan utamamu?", keyboard: column(goalLabels())}
	case stepCustomGoal:
		return prompt{text: "Tulis tujuanmu sendiri:"}
	case stepEquipment:
		labels := make([]string, 0, len(models.EquipmentOptions)+1)
		for _, e := range models.EquipmentOptions {
			label := e.Label()
			if o.profile.HasEquipment(e) {
				label = selectedMark + label
			}
			labels = append(labels, label)
		}
		labels = append(labels, btnDone)
		text := "Peralatan apa saja yang kamu punya? Ketuk untuk memilih, lalu tekan Selesai."
		if len(o.profile.Equipment) > 0 {
			text += "\nDipilih: " + strings.Join(o.profile.EquipmentLabels(), ", ")
		}
		return prompt{text: text, keyboard: column(labels)}
	case stepBudget:
		labels := make([]string, 0, len(models.DietBudgets))
		for _, b := range models.DietBudgets {
			labels = append(labels, b.Label())
		}
		return prompt{text: "Budget makanan harianmu?", keyboard: column(labels)}
	case stepMedical:
		return prompt{text: "Ada riwayat medis atau cedera? Tulis singkat, atau pilih Tidak ada.", keyboard: [][]string{{btnNothing}}}
	case stepSmoker:
		return prompt{text: "Apakah kamu merokok?", keyboard: [][]string{{btnYes, btnNo}}}
	case stepHealth:
		return prompt{text: "Status cek kesehatan terakhir?", keyboard: [][]string{{btnHealthy}}}
	default:
		return prompt{
			text:     "Cek lagi datamu:\n\n" + formatProfile(&o.profile) + "\n\nSudah benar?",
			keyboard: [][]string{{btnConfirm}, {btnRestart}},
		}
	}
}

// cleanInput trims text and drops NUL, which jsonb storage cannot hold.
func cleanInput(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
}

func parseNumber(text string, lo, hi float64) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

func goalLabels() []string {
	labels := make([]string, 0, len(models.Goals))
	for _, g := range models.Goals {
		labels = append(labels, g.Label())
	}
	return labels
}

func goalFromLabel(label string) (models.Goal, bool) {
	for _, g := range models.Goals {
		if g.Label() == label {
			return g, true
		}
	}
	return "", false
}

func equipmentFromLabel(label string) (models.Equipment, bool) {
	for _, e := range models.EquipmentOptions {
		if e.Label() == label {
			return e, true
		}
	}
	return "", false
}

func budgetFromLabel(label string) (models.DietBudget, bool) {
	for _, b := range models.DietBudgets {
		if b.Label() == label {
			return b, true
		}
	}
	return "", false
}

func column(labels []string) [][]string {
	rows := make([][]string, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []string{l})
	}
	return rows
}

// checkin collects the weekly feedback.
type checkin struct {
	step     int
	feedback models.WeeklyFeedback
}

const (
	btnTooEasy   = "Terlalu Mudah"
	btnJustRight = "Pas"
	btnTooHard   = "Terlalu Berat"
)

func newCheckin(week int) *checkin {
	return &checkin{feedback: models.WeeklyFeedback{WeekCompleted: week}}
}

func (c *checkin) handle(text string) (reply prompt, done bool) {
	text = cleanInput(text)
	switch c.step {
	case 0:
		v, ok := parseNumber(text, 30, 300)
		if !ok {
			return c.retry("Masukkan berat badan dalam kg, misalnya 77.")
		}
		c.feedback.CurrentWeight = v
	case 1:
		switch text {
		case btnTooEasy:
			c.feedback.DifficultyRating = models.DifficultyTooEasy
		case btnJustRight:
			c.feedback.DifficultyRating = models.DifficultyJustRight
		case btnTooHard:
			c.feedback.DifficultyRating = models.DifficultyTooHard
		default:
			return c.retry("Pilih tingkat kesulitan dengan tombol di bawah.")
		}
	default:
		if strings.EqualFold(text, btnNothing) {
			text = ""
		}
		c.feedback.Notes = text
		return prompt{text: fmt.Sprintf("Terima kasih! Menyusun rencana minggu ke-%d...", c.feedback.WeekCompleted+1)}, true
	}
	c.step++
	return c.current(), false
}

func (c *checkin) retry(msg string) (prompt, bool) {
	cur := c.current()
	cur.text = msg + "\n\n" + cur.text
	return cur, false
}

func (c *checkin) current() prompt {
	switch c.step {
	case 0:
		return prompt{text: fmt.Sprintf("📝 Check-in minggu ke-%d\nBerapa berat badanmu sekarang (kg)?", c.feedback.WeekCompleted)}
	case 1:
		return prompt{text: "Bagaimana tingkat kesulitan latihan minggu ini?", keyboard: [][]string{{btnTooEasy, btnJustRight, btnTooHard}}}
	default:
		return prompt{text: "Ada catatan? Misalnya bagian tubuh yang sakit atau latihan yang tidak cocok.", keyboard: [][]string{{btnNothing}}}
	}
}

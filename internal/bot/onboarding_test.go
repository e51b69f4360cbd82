package bot

import (
	"testing"

	"fitgenius-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(t *testing.T, o *onboarding, answers ...string) prompt {
	t.Helper()
	var reply prompt
	for _, a := range answers {
		var done bool
		reply, done = o.handle(a)
		require.False(t, done, "conversation ended early at %q", a)
	}
	return reply
}

func TestOnboarding_CollectsProfile(t *testing.T) {
	o := newOnboarding()
	answers := onboardingAnswers()
	feed(t, o, answers[:len(answers)-1]...)

	reply, done := o.handle(btnConfirm)

	require.True(t, done)
	assert.Contains(t, reply.text, "sedang disusun")
	p := o.Profile()
	assert.Equal(t, "Siti Rahma", p.Name)
	assert.Equal(t, 28, p.Age)
	assert.Equal(t, models.GenderFemale, p.Gender)
	assert.Equal(t, 70.5, p.Weight)
	assert.Equal(t, 0.5, p.WeeklyTargetKg)
	assert.Equal(t, models.GoalWeightLoss, p.Goal)
	assert.Equal(t, models.BudgetCheap, p.DietBudget)
	assert.Empty(t, p.MedicalHistory)
	assert.False(t, p.IsSmoker)
	assert.Equal(t, "Sehat", p.HealthCheckStatus)
	assert.NoError(t, p.Validate())
}

func TestOnboarding_RetriesInvalidAnswers(t *testing.T) {
	o := newOnboarding()
	feed(t, o, "Budi")

	reply, _ := o.handle("tiga puluh")
	assert.Contains(t, reply.text, "Masukkan usia")
	assert.Equal(t, stepAge, o.step)

	reply, _ = o.handle("30")
	assert.Equal(t, [][]string{{btnMale, btnFemale}}, reply.keyboard)

	reply, _ = o.handle("lainnya")
	assert.Contains(t, reply.text, "Pilih jenis kelamin")
	assert.Equal(t, stepGender, o.step)

	feed(t, o, btnMale)
	reply, _ = o.handle("20")
	assert.Contains(t, reply.text, "tinggi badan")
	assert.Equal(t, stepHeight, o.step)
}

func TestOnboarding_EquipmentToggle(t *testing.T) {
	o := newOnboarding()
	feed(t, o, "Budi", "30", btnMale, "175", "80", "75", "0.5", models.GoalMuscleBuilding.Label())
	require.Equal(t, stepEquipment, o.step)

	reply, _ := o.handle(btnDone)
	assert.Contains(t, reply.text, "minimal satu")

	reply = feed(t, o, models.EquipmentDumbbells.Label(), models.EquipmentFullGym.Label())
	assert.Contains(t, reply.text, "Dipilih: ")
	assert.Contains(t, reply.keyboard, []string{selectedMark + models.EquipmentDumbbells.Label()})

	feed(t, o, selectedMark+models.EquipmentDumbbells.Label())
	assert.Equal(t, []models.Equipment{models.EquipmentFullGym}, o.profile.Equipment)

	feed(t, o, models.EquipmentNone.Label())
	assert.Equal(t, []models.Equipment{models.EquipmentNone}, o.profile.Equipment)

	feed(t, o, btnDone)
	assert.Equal(t, stepBudget, o.step)
}

func TestOnboarding_CustomGoal(t *testing.T) {
	o := newOnboarding()
	reply := feed(t, o, "Budi", "30", btnMale, "175", "80", "75", "0.5", models.GoalCustom.Label())
	assert.Equal(t, stepCustomGoal, o.step)
	assert.Nil(t, reply.keyboard)

	feed(t, o, "Bisa lari 10K")
	assert.Equal(t, models.Goal("Bisa lari 10K"), o.profile.Goal)
	assert.Equal(t, stepEquipment, o.step)
}

func TestOnboarding_RestartFromSummary(t *testing.T) {
	o := newOnboarding()
	answers := onboardingAnswers()
	feed(t, o, answers[:len(answers)-1]...)
	require.Equal(t, stepConfirm, o.step)

	reply, done := o.handle(btnRestart)

	assert.False(t, done)
	assert.Equal(t, stepName, o.step)
	assert.Contains(t, reply.text, "Siapa nama lengkapmu")
	assert.Empty(t, o.profile.Name)
}

func TestOnboarding_CommaDecimal(t *testing.T) {
	v, ok := parseNumber("72,5", 30, 300)
	assert.True(t, ok)
	assert.Equal(t, 72.5, v)

	_, ok = parseNumber("500", 30, 300)
	assert.False(t, ok)
}

func TestCheckin_CollectsFeedback(t *testing.T) {
	c := newCheckin(3)
	assert.Contains(t, c.current().text, "minggu ke-3")

	reply, done := c.handle("abc")
	assert.False(t, done)
	assert.Contains(t, reply.text, "Masukkan berat badan")

	c.handle("77")
	reply, _ = c.handle("susah")
	assert.Contains(t, reply.text, "Pilih tingkat kesulitan")

	c.handle(btnJustRight)
	reply, done = c.handle(btnNothing)

	require.True(t, done)
	assert.Contains(t, reply.text, "minggu ke-4")
	assert.Equal(t, models.WeeklyFeedback{WeekCompleted: 3, CurrentWeight: 77, DifficultyRating: models.DifficultyJustRight}, c.feedback)
	assert.NoError(t, c.feedback.Validate())
}

func TestOnboarding_DropsNUL(t *testing.T) {
	o := newOnboarding()
	feed(t, o, "Bu\x00di ")

	assert.Equal(t, "Budi", o.profile.Name)

	c := newCheckin(1)
	c.handle("70")
	c.handle(btnJustRight)
	_, done := c.handle("lutut\x00 pegal")
	require.True(t, done)
	assert.Equal(t, "lutut pegal", c.feedback.Notes)
}

package bot

import (
	"fmt"
	"strings"

	"fitgenius-bot/internal/models"
)

func formatOverview(plan *models.FitnessPlan) string {
	var b strings.Builder
	done, total := plan.Progress()
	fmt.Fprintf(&b, "📅 Minggu ke-%d\n%s\n\nProgres: %d/%d latihan selesai\n\n", plan.WeekNumber, plan.Overview, done, total)

	for _, r := range plan.Routines {
		mark := "▫️"
		switch {
		case r.IsRestDay:
			mark = "🛌"
		case r.IsCompleted:
			mark = "✅"
		}
		if r.IsRestDay {
			fmt.Fprintf(&b, "%s Hari %d: Istirahat\n", mark, r.DayNumber)
			continue
		}
		fmt.Fprintf(&b, "%s Hari %d: %s (%s, ±%d menit)\n", mark, r.DayNumber, r.Title, r.FocusArea, r.EstimatedDurationMin)
	}

	b.WriteString("\n/today detail hari ini, /workout N mulai latihan, /diet ganti menu, /finishweek check-in mingguan")
	return b.String()
}

func formatRoutine(r *models.DailyRoutine) string {
	var b strings.Builder
	if r.IsRestDay {
		fmt.Fprintf(&b, "🛌 Hari %d: Istirahat\nPulihkan tenaga, tetap jalan santai dan cukup minum air.", r.DayNumber)
		return b.String()
	}

	fmt.Fprintf(&b, "🏋️ Hari %d: %s\nFokus: %s, ±%d menit\n", r.DayNumber, r.Title, r.FocusArea, r.EstimatedDurationMin)
	if r.IsCompleted {
		b.WriteString("Status: selesai ✅\n")
	}
	for i, ex := range r.Exercises {
		fmt.Fprintf(&b, "\n%d. %s\n   %s, istirahat %d dtk\n", i+1, ex.Name, formatVolume(ex), ex.RestSeconds)
		if ex.Description != "" {
			fmt.Fprintf(&b, "   %s\n", ex.Description)
		}
		if ex.Tips != "" {
			fmt.Fprintf(&b, "   💡 %s\n", ex.Tips)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatVolume(ex models.Exercise) string {
	if ex.IsTimed() {
		return fmt.Sprintf("%d set x %d detik", ex.Sets, ex.DurationSeconds)
	}
	return fmt.Sprintf("%d set x %d repetisi", ex.Sets, ex.Reps)
}

func formatDiet(d *models.DailyDiet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🍽️ Menu hari %d (±%d kkal)\n", d.DayNumber, d.TotalCalories)
	slots := []struct {
		name string
		meal *models.Meal
	}{
		{"Sarapan", d.Meals.Breakfast},
		{"Snack", d.Meals.Snack1},
		{"Makan siang", d.Meals.Lunch},
		{"Snack sore", d.Meals.Snack2},
		{"Makan malam", d.Meals.Dinner},
	}
	for _, s := range slots {
		if s.meal == nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s): %s, %d kkal", s.name, s.meal.Time, s.meal.Menu, s.meal.Calories)
	}
	return b.String()
}

// formatDay renders the routine and diet of one day together.
func formatDay(plan *models.FitnessPlan, day int) (string, bool) {
	routine, ok := plan.RoutineForDay(day)
	if !ok {
		return "", false
	}
	parts := []string{formatRoutine(routine)}
	if diet, ok := plan.DietForDay(day); ok {
		parts = append(parts, formatDiet(diet))
	}
	return strings.Join(parts, "\n\n"), true
}

func formatProfile(p *models.UserProfile) string {
	smoker := "Tidak"
	if p.IsSmoker {
		smoker = "Ya"
	}
	medical := p.MedicalHistory
	if medical == "" {
		medical = "Tidak ada"
	}
	gender := "Laki-laki"
	if p.Gender == models.GenderFemale {
		gender = "Perempuan"
	}
	return fmt.Sprintf(
		"Nama: %s\nUsia: %d\nJenis kelamin: %s\nTinggi: %s cm\nBerat: %s kg\nTarget: %s kg (%s %s kg/minggu)\nTujuan: %s\nPeralatan: %s\nBudget makan: %s\nRiwayat medis: %s\nPerokok: %s\nStatus kesehatan: %s",
		p.Name, p.Age, gender, num(p.Height), num(p.Weight), num(p.TargetWeight), p.WeightDirection(), num(p.WeeklyTargetKg),
		p.Goal.Label(), strings.Join(p.EquipmentLabels(), ", "), p.DietBudget.Label(), medical, smoker, p.HealthCheckStatus,
	)
}

func num(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", f), "0"), ".")
}

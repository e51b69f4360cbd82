package gateway

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"fitgenius-bot/internal/models"
)

const planPromptTemplate = `Act as a professional AI fitness coach.
Create a 7-day workout and diet plan for this user:
- Name: {{.Profile.Name}}, Age: {{.Profile.Age}}, Gender: {{.Profile.Gender}}
- Height: {{num .Profile.Height}} cm, Current weight: {{num .Profile.Weight}} kg, Target weight: {{num .Profile.TargetWeight}} kg
- Weekly target: {{.Direction}} {{num .Profile.WeeklyTargetKg}} kg per week
- Goal: {{.Profile.Goal.Label}}
- Equipment: {{join .Profile.EquipmentLabels ", "}}
- Diet budget: {{.Profile.DietBudget.Label}}
- Medical history: {{or .Profile.MedicalHistory "none"}}
- Smoker: {{if .Profile.IsSmoker}}yes{{else}}no{{end}}
- Health status: {{or .Profile.HealthCheckStatus "not provided"}}
- Week number: {{.Week}}
{{if .Feedback}}
This is week {{.Week}}. Adjust based on last week's feedback:
- Weight after week {{.Feedback.WeekCompleted}}: {{num .Feedback.CurrentWeight}} kg
- Difficulty: {{.Feedback.DifficultyRating}}, so {{.Intensity}}.
{{- if .Feedback.Notes}}
- Avoid exercises that stress or aggravate: {{.Feedback.Notes}}.
{{- end}}
{{else if gt .Week 1}}
This is week {{.Week}}. No feedback was given; progress the previous week moderately.
{{else}}
This is the user's first week. Start conservatively and build habits.
{{end}}
Requirements:
1. Routines and diet must each cover dayNumber 1 to 7 exactly once.
2. Rest days have isRestDay=true and an empty exercises list; every other day has exercises.
3. Each exercise has either reps or durationSeconds, never both.
4. Every diet day has breakfast, lunch, dinner and snack1; snack2 is optional.
5. Match the diet to the budget and avoid movements unsafe for the medical history.
6. Write all text in friendly, motivating Indonesian.
7. Return pure JSON matching the schema.`

const dietPromptTemplate = `Regenerate a 7-day meal plan (budget: {{.Profile.DietBudget.Label}}) for {{.Profile.Name}}.
- Goal: {{.Profile.Goal.Label}}, weight {{num .Profile.Weight}} kg, target {{num .Profile.TargetWeight}} kg
- Medical history: {{or .Profile.MedicalHistory "none"}}
{{if eq .Profile.DietBudget "CHEAP"}}Focus on cheap local high-protein foods such as eggs, tempeh, tofu and chicken breast.
{{else}}Keep the menu varied and realistic for the budget.
{{end}}Cover dayNumber 1 to 7 exactly once. Every day has breakfast, lunch, dinner and snack1; snack2 is optional.
Write menus in Indonesian. Return pure JSON matching the schema.`

const assistantPromptTemplate = `You are the FitGenius coaching assistant. Answer briefly in friendly Indonesian.
User: {{.Profile.Name}}, {{.Profile.Age}} years, {{num .Profile.Weight}} kg, goal {{.Profile.Goal.Label}}.
Medical history: {{or .Profile.MedicalHistory "none"}}
{{with .Routine}}Today's workout (day {{.DayNumber}}): {{.Title}}{{if .IsRestDay}} (rest day){{else}}, focus {{.FocusArea}}{{end}}
{{end}}{{with .Diet}}Today's diet: {{.TotalCalories}} kcal total{{with .Meals.Breakfast}}; breakfast {{.Menu}}{{end}}{{with .Meals.Lunch}}; lunch {{.Menu}}{{end}}{{with .Meals.Dinner}}; dinner {{.Menu}}{{end}}
{{end}}If the user reports a cheat meal, suggest how to balance the rest of the day.
Question: {{.Question}}`

var funcMap = template.FuncMap{
	"join": strings.Join,
	"num": func(f float64) string {
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", f), "0"), ".")
	},
}

var (
	planPrompt      = template.Must(template.New("plan").Funcs(funcMap).Parse(planPromptTemplate))
	dietPrompt      = template.Must(template.New("diet").Funcs(funcMap).Parse(dietPromptTemplate))
	assistantPrompt = template.Must(template.New("assistant").Funcs(funcMap).Parse(assistantPromptTemplate))
)

const systemPrompt = "You are FitGenius, a professional fitness and nutrition coach. Follow the requested JSON schema exactly."

// intensityFor maps the difficulty rating onto the next week's direction.
func intensityFor(r models.DifficultyRating) string {
	switch r {
	case models.DifficultyTooEasy:
		return "increase intensity (more volume, harder variations)"
	case models.DifficultyTooHard:
		return "reduce intensity (less volume, easier variations, longer rests)"
	default:
		return "keep a similar intensity with slight progression"
	}
}

// directionFor phrases the weight goal for the English instruction.
func directionFor(profile *models.UserProfile) string {
	switch {
	case profile.TargetWeight < profile.Weight:
		return "lose"
	case profile.TargetWeight > profile.Weight:
		return "gain"
	default:
		return "maintain weight, change of at most"
	}
}

// BuildPlanPrompt renders the plan instruction. Exported so callers can
// inspect the framing sent for a given profile and feedback.
func BuildPlanPrompt(profile *models.UserProfile, week int, feedback *models.WeeklyFeedback) (string, error) {
	data := struct {
		Profile   *models.UserProfile
		Week      int
		Feedback  *models.WeeklyFeedback
		Direction string
		Intensity string
	}{
		Profile:   profile,
		Week:      week,
		Feedback:  feedback,
		Direction: directionFor(profile),
	}
	if feedback != nil {
		data.Intensity = intensityFor(feedback.DifficultyRating)
	}
	return render(planPrompt, data)
}

func BuildDietPrompt(profile *models.UserProfile) (string, error) {
	return render(dietPrompt, struct{ Profile *models.UserProfile }{profile})
}

func BuildAssistantPrompt(profile *models.UserProfile, diet *models.DailyDiet, routine *models.DailyRoutine, question string) (string, error) {
	return render(assistantPrompt, struct {
		Profile  *models.UserProfile
		Diet     *models.DailyDiet
		Routine  *models.DailyRoutine
		Question string
	}{profile, diet, routine, question})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

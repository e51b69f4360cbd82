package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DaysPerWeek is the number of routines and diets every plan carries.
const DaysPerWeek = 7

type Exercise struct {
	Name            string `json:"name" jsonschema_description:"Exercise name"`
	Description     string `json:"description" jsonschema_description:"How to perform the movement"`
	ImagePrompt     string `json:"imagePrompt,omitempty" jsonschema_description:"Short stick-figure illustration prompt"`
	Reps            int    `json:"reps,omitempty" jsonschema_description:"Repetitions per set, omit for timed exercises"`
	DurationSeconds int    `json:"durationSeconds,omitempty" jsonschema_description:"Seconds per set for timed exercises, omit when reps is set"`
	Sets            int    `json:"sets" jsonschema_description:"Number of sets"`
	RestSeconds     int    `json:"restSeconds" jsonschema_description:"Rest between sets in seconds"`
	Tips            string `json:"tips" jsonschema_description:"One coaching tip"`
}

// IsTimed reports whether the exercise is held for a duration instead of counted in reps.
func (e Exercise) IsTimed() bool {
	return e.DurationSeconds > 0 && e.Reps <= 0
}

type DailyRoutine struct {
	DayNumber            int        `json:"dayNumber" jsonschema:"minimum=1,maximum=7"`
	Title                string     `json:"title"`
	FocusArea            string     `json:"focusArea"`
	IsRestDay            bool       `json:"isRestDay"`
	Exercises            []Exercise `json:"exercises"`
	EstimatedDurationMin int        `json:"estimatedDurationMin"`
	IsCompleted          bool       `json:"isCompleted,omitempty" jsonschema:"-"`
}

type Meal struct {
	Time     string `json:"time" jsonschema_description:"Time of day, e.g. 07:00"`
	Menu     string `json:"menu"`
	Calories int    `json:"calories"`
}

type Meals struct {
	Breakfast *Meal `json:"breakfast"`
	Lunch     *Meal `json:"lunch"`
	Dinner    *Meal `json:"dinner"`
	Snack1    *Meal `json:"snack1"`
	Snack2    *Meal `json:"snack2,omitempty"`
}

type DailyDiet struct {
	DayNumber     int   `json:"dayNumber" jsonschema:"minimum=1,maximum=7"`
	TotalCalories int   `json:"totalCalories"`
	Meals         Meals `json:"meals"`
}

type FitnessPlan struct {
	WeekNumber int            `json:"weekNumber"`
	Overview   string         `json:"overview"`
	Routines   []DailyRoutine `json:"routines"`
	Diet       []DailyDiet    `json:"diet"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type DifficultyRating string

const (
	DifficultyTooEasy   DifficultyRating = "Too Easy"
	DifficultyJustRight DifficultyRating = "Just Right"
	DifficultyTooHard   DifficultyRating = "Too Hard"
)

type WeeklyFeedback struct {
	WeekCompleted    int              `json:"weekCompleted"`
	CurrentWeight    float64          `json:"currentWeight"`
	DifficultyRating DifficultyRating `json:"difficultyRating"`
	Notes            string           `json:"notes"`
}

func (f *WeeklyFeedback) Validate() error {
	if f.WeekCompleted < 1 {
		return fmt.Errorf("week completed must be at least 1, got %d", f.WeekCompleted)
	}
	if f.CurrentWeight <= 0 {
		return errors.New("current weight must be positive")
	}
	switch f.DifficultyRating {
	case DifficultyTooEasy, DifficultyJustRight, DifficultyTooHard:
	default:
		return fmt.Errorf("unknown difficulty rating %q", f.DifficultyRating)
	}
	return nil
}

// Snapshot is the durable record: the last committed profile and plan.
type Snapshot struct {
	UserProfile *UserProfile `json:"userProfile"`
	FitnessPlan *FitnessPlan `json:"fitnessPlan"`
}

var ErrInvalidPlan = errors.New("invalid plan")

// Validate checks the structural invariants of a full plan.
func (p *FitnessPlan) Validate() error {
	if p.WeekNumber < 1 {
		return fmt.Errorf("%w: week number %d", ErrInvalidPlan, p.WeekNumber)
	}
	if err := ValidateRoutines(p.Routines); err != nil {
		return err
	}
	return ValidateDiet(p.Diet)
}

// ValidateRoutines requires day numbers 1..7 exactly once, and exercises iff not a rest day.
func ValidateRoutines(routines []DailyRoutine) error {
	days := make([]int, 0, len(routines))
	for _, r := range routines {
		days = append(days, r.DayNumber)
		if r.IsRestDay && len(r.Exercises) > 0 {
			return fmt.Errorf("%w: day %d is a rest day with exercises", ErrInvalidPlan, r.DayNumber)
		}
		if !r.IsRestDay && len(r.Exercises) == 0 {
			return fmt.Errorf("%w: day %d has no exercises", ErrInvalidPlan, r.DayNumber)
		}
	}
	if err := checkDayCoverage(days); err != nil {
		return fmt.Errorf("%w: routines: %v", ErrInvalidPlan, err)
	}
	return nil
}

// ValidateDiet requires day numbers 1..7 exactly once and every required meal slot.
func ValidateDiet(diet []DailyDiet) error {
	days := make([]int, 0, len(diet))
	for _, d := range diet {
		days = append(days, d.DayNumber)
		var missing []string
		if d.Meals.Breakfast == nil {
			missing = append(missing, "breakfast")
		}
		if d.Meals.Lunch == nil {
			missing = append(missing, "lunch")
		}
		if d.Meals.Dinner == nil {
			missing = append(missing, "dinner")
		}
		if d.Meals.Snack1 == nil {
			missing = append(missing, "snack1")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: diet day %d missing %s", ErrInvalidPlan, d.DayNumber, strings.Join(missing, ", "))
		}
	}
	if err := checkDayCoverage(days); err != nil {
		return fmt.Errorf("%w: diet: %v", ErrInvalidPlan, err)
	}
	return nil
}

func checkDayCoverage(days []int) error {
	if len(days) != DaysPerWeek {
		return fmt.Errorf("expected %d days, got %d", DaysPerWeek, len(days))
	}
	var seen [DaysPerWeek + 1]bool
	for _, d := range days {
		if d < 1 || d > DaysPerWeek {
			return fmt.Errorf("day number %d out of range", d)
		}
		if seen[d] {
			return fmt.Errorf("day number %d repeated", d)
		}
		seen[d] = true
	}
	return nil
}

func (p *FitnessPlan) RoutineForDay(day int) (*DailyRoutine, bool) {
	for i := range p.Routines {
		if p.Routines[i].DayNumber == day {
			return &p.Routines[i], true
		}
	}
	return nil, false
}

func (p *FitnessPlan) DietForDay(day int) (*DailyDiet, bool) {
	for i := range p.Diet {
		if p.Diet[i].DayNumber == day {
			return &p.Diet[i], true
		}
	}
	return nil, false
}

// FirstIncompleteDay is the dashboard default: the earliest non-rest day not yet
// completed, falling back to day 1 when the week is done.
func (p *FitnessPlan) FirstIncompleteDay() int {
	best := 0
	for _, r := range p.Routines {
		if r.IsRestDay || r.IsCompleted {
			continue
		}
		if best == 0 || r.DayNumber < best {
			best = r.DayNumber
		}
	}
	if best == 0 {
		return 1
	}
	return best
}

// Progress counts completed workout days against all workout days.
func (p *FitnessPlan) Progress() (done, total int) {
	for _, r := range p.Routines {
		if r.IsRestDay {
			continue
		}
		total++
		if r.IsCompleted {
			done++
		}
	}
	return done, total
}

// Clone deep-copies the plan. Meals are copied so diet replacement in one copy
// never leaks into another.
func (p *FitnessPlan) Clone() *FitnessPlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Routines = make([]DailyRoutine, len(p.Routines))
	for i, r := range p.Routines {
		r.Exercises = CloneExercises(r.Exercises)
		cp.Routines[i] = r
	}
	cp.Diet = CloneDiet(p.Diet)
	return &cp
}

// CloneExercises copies ex keeping nil and empty apart, so a rest day's []
// still encodes as an array.
func CloneExercises(ex []Exercise) []Exercise {
	if ex == nil {
		return nil
	}
	out := make([]Exercise, len(ex))
	copy(out, ex)
	return out
}

func CloneDiet(diet []DailyDiet) []DailyDiet {
	if diet == nil {
		return nil
	}
	out := make([]DailyDiet, len(diet))
	for i, d := range diet {
		d.Meals = Meals{
			Breakfast: cloneMeal(d.Meals.Breakfast),
			Lunch:     cloneMeal(d.Meals.Lunch),
			Dinner:    cloneMeal(d.Meals.Dinner),
			Snack1:    cloneMeal(d.Meals.Snack1),
			Snack2:    cloneMeal(d.Meals.Snack2),
		}
		out[i] = d
	}
	return out
}

func cloneMeal(m *Meal) *Meal {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Goal string

const (
	GoalWeightLoss     Goal = "WEIGHT_LOSS"
	GoalMuscleBuilding Goal = "MUSCLE_BUILDING"
	GoalAbs            Goal = "ABS"
	GoalEndurance      Goal = "ENDURANCE"
	GoalGeneralHealth  Goal = "GENERAL_HEALTH"
	GoalCustom         Goal = "CUSTOM"
)

// Goals lists the predefined goals in the order onboarding offers them.
var Goals = []Goal{GoalWeightLoss, GoalMuscleBuilding, GoalAbs, GoalEndurance, GoalGeneralHealth, GoalCustom}

var goalLabels = map[Goal]string{
	GoalWeightLoss:     "Menurunkan Berat Badan",
	GoalMuscleBuilding: "Membentuk Otot (Bulking)",
	GoalAbs:            "Membentuk Otot Perut",
	GoalEndurance:      "Meningkatkan Stamina",
	GoalGeneralHealth:  "Kesehatan Umum",
	GoalCustom:         "Lainnya (Ketik Manual)",
}

// Label returns the human readable goal. Free-text goals are returned as is.
func (g Goal) Label() string {
	if l, ok := goalLabels[g]; ok {
		return l
	}
	return string(g)
}

type Equipment string

const (
	EquipmentNone            Equipment = "NONE"
	EquipmentDumbbells       Equipment = "DUMBBELLS"
	EquipmentFullGym         Equipment = "FULL_GYM"
	EquipmentResistanceBands Equipment = "RESISTANCE_BANDS"
	EquipmentTreadmill       Equipment = "TREADMILL"
)

var EquipmentOptions = []Equipment{EquipmentNone, EquipmentDumbbells, EquipmentFullGym, EquipmentResistanceBands, EquipmentTreadmill}

var equipmentLabels = map[Equipment]string{
	EquipmentNone:            "Tidak ada (Bodyweight)",
	EquipmentDumbbells:       "Dumbbells/Barbel Kecil",
	EquipmentFullGym:         "Gym Lengkap",
	EquipmentResistanceBands: "Karet Resistensi",
	EquipmentTreadmill:       "Treadmill",
}

func (e Equipment) Label() string {
	if l, ok := equipmentLabels[e]; ok {
		return l
	}
	return string(e)
}

type DietBudget string

const (
	BudgetCheap     DietBudget = "CHEAP"
	BudgetMedium    DietBudget = "MEDIUM"
	BudgetExpensive DietBudget = "EXPENSIVE"
)

var DietBudgets = []DietBudget{BudgetCheap, BudgetMedium, BudgetExpensive}

var budgetLabels = map[DietBudget]string{
	BudgetCheap:     "Murah (Hemat/Anak Kos)",
	BudgetMedium:    "Sedang (Wajar/Seimbang)",
	BudgetExpensive: "Mahal (Premium/High Protein)",
}

func (b DietBudget) Label() string {
	if l, ok := budgetLabels[b]; ok {
		return l
	}
	return string(b)
}

type UserProfile struct {
	Name              string      `json:"name"`
	Age               int         `json:"age"`
	Gender            Gender      `json:"gender"`
	Height            float64     `json:"height"`
	Weight            float64     `json:"weight"`
	TargetWeight      float64     `json:"targetWeight"`
	WeeklyTargetKg    float64     `json:"weeklyTargetKg"`
	Goal              Goal        `json:"goal"`
	Equipment         []Equipment `json:"equipment"`
	DietBudget        DietBudget  `json:"dietBudget"`
	MedicalHistory    string      `json:"medicalHistory"`
	IsSmoker          bool        `json:"isSmoker"`
	HealthCheckStatus string      `json:"healthCheckStatus"`
}

var ErrInvalidProfile = errors.New("invalid profile")

// Validate checks the invariants a completed onboarding must satisfy.
func (p *UserProfile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is empty")
	}
	if p.Age <= 0 {
		problems = append(problems, "age must be positive")
	}
	if p.Gender != GenderMale && p.Gender != GenderFemale {
		problems = append(problems, fmt.Sprintf("unknown gender %q", p.Gender))
	}
	if p.Height <= 0 {
		problems = append(problems, "height must be positive")
	}
	if p.Weight <= 0 {
		problems = append(problems, "weight must be positive")
	}
	if p.TargetWeight <= 0 {
		problems = append(problems, "target weight must be positive")
	}
	if p.WeeklyTargetKg < 0 {
		problems = append(problems, "weekly target must not be negative")
	}
	if strings.TrimSpace(string(p.Goal)) == "" || p.Goal == GoalCustom {
		problems = append(problems, "goal is empty")
	}
	if len(p.Equipment) == 0 {
		problems = append(problems, "equipment is empty")
	} else if p.HasEquipment(EquipmentNone) && len(p.Equipment) > 1 {
		problems = append(problems, "NONE equipment cannot be combined")
	}
	switch p.DietBudget {
	case BudgetCheap, BudgetMedium, BudgetExpensive:
	default:
		problems = append(problems, fmt.Sprintf("unknown diet budget %q", p.DietBudget))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
	}
	return nil
}

func (p *UserProfile) HasEquipment(e Equipment) bool {
	for _, have := range p.Equipment {
		if have == e {
			return true
		}
	}
	return false
}

// ToggleEquipment flips e in the equipment set. Selecting NONE clears
// everything else and selecting anything else clears NONE.
func (p *UserProfile) ToggleEquipment(e Equipment) {
	if p.HasEquipment(e) {
		kept := p.Equipment[:0]
		for _, have := range p.Equipment {
			if have != e {
				kept = append(kept, have)
			}
		}
		p.Equipment = kept
		return
	}
	if e == EquipmentNone {
		p.Equipment = []Equipment{EquipmentNone}
		return
	}
	kept := make([]Equipment, 0, len(p.Equipment)+1)
	for _, have := range p.Equipment {
		if have != EquipmentNone {
			kept = append(kept, have)
		}
	}
	p.Equipment = append(kept, e)
}

// WeightDirection describes whether the user wants to lose, gain or keep weight.
func (p *UserProfile) WeightDirection() string {
	switch {
	case p.TargetWeight < p.Weight:
		return "turun"
	case p.TargetWeight > p.Weight:
		return "naik"
	default:
		return "pertahankan"
	}
}

func (p *UserProfile) EquipmentLabels() []string {
	labels := make([]string, 0, len(p.Equipment))
	for _, e := range p.Equipment {
		labels = append(labels, e.Label())
	}
	return labels
}

// Clone returns a deep copy so callers can mutate without touching committed state.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Equipment = append([]Equipment(nil), p.Equipment...)
	return &cp
}

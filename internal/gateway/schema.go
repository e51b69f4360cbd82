package gateway

import (
	"encoding/json"
	"fmt"

	"fitgenius-bot/internal/models"

	"github.com/invopop/jsonschema"
)

// planPayload is the shape requested from the model. Timestamps and
// completion flags are owned by the app, not the model.
type planPayload struct {
	WeekNumber int                   `json:"weekNumber" jsonschema:"minimum=1"`
	Overview   string                `json:"overview" jsonschema_description:"Motivating summary of the week's strategy"`
	Routines   []models.DailyRoutine `json:"routines" jsonschema:"minItems=7,maxItems=7" jsonschema_description:"Exactly one routine per day, dayNumber 1 to 7"`
	Diet       []models.DailyDiet    `json:"diet" jsonschema:"minItems=7,maxItems=7" jsonschema_description:"Exactly one diet per day, dayNumber 1 to 7"`
}

// dietPayload wraps the diet array; providers want an object at the root.
type dietPayload struct {
	Diet []models.DailyDiet `json:"diet" jsonschema:"minItems=7,maxItems=7" jsonschema_description:"Exactly one diet per day, dayNumber 1 to 7"`
}

func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

var (
	PlanSchema = GenerateSchema[planPayload]()
	DietSchema = GenerateSchema[dietPayload]()
)

// decodePlan unwraps, parses and validates a plan response.
func decodePlan(raw string) (*models.FitnessPlan, error) {
	var payload planPayload
	if err := decodeJSON(raw, &payload, "weekNumber", "overview", "routines", "diet"); err != nil {
		return nil, err
	}
	plan := &models.FitnessPlan{
		WeekNumber: payload.WeekNumber,
		Overview:   payload.Overview,
		Routines:   payload.Routines,
		Diet:       payload.Diet,
	}
	if plan.WeekNumber < 1 {
		// the caller pins the week anyway; don't reject over it
		plan.WeekNumber = 1
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// decodeDiet accepts either {"diet": [...]} or a bare array.
func decodeDiet(raw string) ([]models.DailyDiet, error) {
	body := UnwrapCodeFence(raw)
	var diet []models.DailyDiet
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal([]byte(body), &diet); err != nil {
			return nil, fmt.Errorf("parse diet array: %w", err)
		}
	} else {
		var payload dietPayload
		if err := decodeJSON(body, &payload, "diet"); err != nil {
			return nil, err
		}
		diet = payload.Diet
	}
	if err := models.ValidateDiet(diet); err != nil {
		return nil, err
	}
	return diet, nil
}

// decodeJSON parses the unwrapped body into v after checking that the
// required top-level keys are present.
func decodeJSON(raw string, v any, required ...string) error {
	body := UnwrapCodeFence(raw)
	if body == "" {
		return fmt.Errorf("empty response")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	for _, key := range required {
		if _, ok := top[key]; !ok {
			return fmt.Errorf("response missing %q", key)
		}
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func schemaJSON(s *jsonschema.Schema) json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		// reflected schemas always marshal
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	return b
}

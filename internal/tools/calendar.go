package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bowerhall/mira/internal/calendar"
	"github.com/bowerhall/mira/internal/llm"
	"github.com/bowerhall/mira/internal/logger"
)

type availabilityArgs struct {
	Date     string `json:"date"`
	Duration int    `json:"duration"`
	Vessel   string `json:"vessel"`
}

// RegisterCalendarTools exposes availability checking to the model.
func RegisterCalendarTools(r *Registry, svc *calendar.Service) {
	r.Register(llm.Tool{
		Name:        "check_availability",
		Description: "Check free departure slots for a vessel on a given date.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date":     map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				"duration": map[string]any{"type": "number", "description": "Charter length in hours"},
				"vessel":   map[string]any{"type": "string"},
			},
			"required": []string{"date", "duration", "vessel"},
		},
	}, func(ctx context.Context, args string) (Outcome, error) {
		var a availabilityArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return Outcome{}, fmt.Errorf("parse availability args: %w", err)
		}

		slots, err := svc.Availability(ctx, a.Date, a.Duration, a.Vessel)
		if err != nil {
			return Outcome{}, err
		}
		if len(slots) == 0 {
			return Outcome{Text: "No free slots on that date."}, nil
		}

		texts := make([]string, len(slots))
		for i, s := range slots {
			texts[i] = s.DisplayText()
		}
		logger.Debug("availability checked", "date", a.Date, "vessel", a.Vessel, "slots", len(slots))
		return Outcome{Text: "Free slots: " + strings.Join(texts, ", ")}, nil
	})
}

package counsel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/zyn"
)

// BriefingInstruction turns a user's history into their daily briefing.
const BriefingInstruction = `write a personalized executive briefing for the user whose history is given.
Include:
1. Progress on current goals
2. Key metrics update
3. Recommended focus for today
4. Industry insights relevant to their business`

// GenerateDailyBriefing writes a briefing for userID from their history.
// It makes a single model call and does not route.
func (o *Orchestrator) GenerateDailyBriefing(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("briefing: %w: user id is empty", ErrInvalidQuery)
	}

	start := time.Now()
	traceID := TraceIDFromContext(ctx)

	r := &Request{TraceID: traceID, Query: Query{UserID: userID}}
	history := o.historical(ctx, r)

	input, err := RenderBriefingInput(history)
	if err != nil {
		return "", fmt.Errorf("briefing: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Briefing)
	defer cancel()

	briefing, err := o.briefing.FireWithInput(callCtx, zyn.NewSession(), zyn.TransformInput{
		Text:        input,
		Temperature: o.briefingTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("briefing: %w", upstreamError("briefing", err))
	}

	capitan.Emit(ctx, BriefingGenerated,
		FieldTraceID.Field(traceID),
		FieldUserID.Field(userID),
		FieldContentSize.Field(len(briefing)),
		FieldTemperature.Field(o.briefingTemperature),
		FieldStepDuration.Field(time.Since(start)),
	)
	return briefing, nil
}

// RenderBriefingInput serializes history as the briefing's input text.
func RenderBriefingInput(h HistoricalContext) (string, error) {
	data, err := json.Marshal(h.normalized())
	if err != nil {
		return "", fmt.Errorf("failed to marshal history: %w", err)
	}
	return string(data), nil
}

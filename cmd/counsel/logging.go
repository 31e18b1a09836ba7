package main

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/counsel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bridgedSignal names a counsel signal and the level it is logged at.
// Error-severity events are always logged at error level.
type bridgedSignal struct {
	name   string
	signal capitan.Signal
	level  zapcore.Level
}

var bridgedSignals = []bridgedSignal{
	{"request.received", counsel.RequestReceived, zapcore.DebugLevel},
	{"request.completed", counsel.RequestCompleted, zapcore.InfoLevel},
	{"request.failed", counsel.RequestFailed, zapcore.ErrorLevel},
	{"step.started", counsel.StepStarted, zapcore.DebugLevel},
	{"step.completed", counsel.StepCompleted, zapcore.DebugLevel},
	{"step.failed", counsel.StepFailed, zapcore.ErrorLevel},
	{"context.retrieved", counsel.ContextRetrieved, zapcore.DebugLevel},
	{"query.routed", counsel.QueryRouted, zapcore.DebugLevel},
	{"capability.dispatched", counsel.CapabilityDispatched, zapcore.DebugLevel},
	{"capability.missing", counsel.CapabilityMissing, zapcore.ErrorLevel},
	{"response.enhanced", counsel.ResponseEnhanced, zapcore.DebugLevel},
	{"enrichment.degraded", counsel.EnrichmentDegraded, zapcore.WarnLevel},
	{"history.degraded", counsel.HistoryDegraded, zapcore.WarnLevel},
	{"interaction.logged", counsel.InteractionLogged, zapcore.DebugLevel},
	{"sink.failed", counsel.SinkFailed, zapcore.WarnLevel},
	{"briefing.generated", counsel.BriefingGenerated, zapcore.InfoLevel},
}

// bridgeSignals logs counsel events through logger until the returned
// function is called.
func bridgeSignals(logger *zap.Logger) func() error {
	events := logger.Named("counsel")
	listeners := make([]*capitan.Listener, 0, len(bridgedSignals))
	for _, b := range bridgedSignals {
		b := b
		listeners = append(listeners, capitan.Hook(b.signal, func(_ context.Context, e *capitan.Event) {
			level := b.level
			if e.Severity() == capitan.SeverityError {
				level = zapcore.ErrorLevel
			}
			if ce := events.Check(level, b.name); ce != nil {
				ce.Write(eventFields(e)...)
			}
		}))
	}
	return func() error {
		for _, l := range listeners {
			l.Close()
		}
		return nil
	}
}

// eventFields converts the known counsel field keys present on e.
func eventFields(e *capitan.Event) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	if v, ok := counsel.FieldTraceID.From(e); ok && v != "" {
		fields = append(fields, zap.String("trace_id", v))
	}
	if v, ok := counsel.FieldUserID.From(e); ok && v != "" {
		fields = append(fields, zap.String("user_id", v))
	}
	if v, ok := counsel.FieldSessionID.From(e); ok && v != "" {
		fields = append(fields, zap.String("session_id", v))
	}
	if v, ok := counsel.FieldOp.From(e); ok && v != "" {
		fields = append(fields, zap.String("op", v))
	}
	if v, ok := counsel.FieldStage.From(e); ok && v != "" {
		fields = append(fields, zap.String("stage", v))
	}
	if v, ok := counsel.FieldCapability.From(e); ok && v != "" {
		fields = append(fields, zap.String("capability", v))
	}
	if v, ok := counsel.FieldEnrichment.From(e); ok && v != "" {
		fields = append(fields, zap.String("enrichment", v))
	}
	if v, ok := counsel.FieldConfidence.From(e); ok {
		fields = append(fields, zap.Float32("confidence", v))
	}
	if v, ok := counsel.FieldSourceCount.From(e); ok {
		fields = append(fields, zap.Int("source_count", v))
	}
	if v, ok := counsel.FieldStepDuration.From(e); ok {
		fields = append(fields, zap.Duration("step_duration", v))
	}
	if err, ok := counsel.FieldError.From(e); ok && err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

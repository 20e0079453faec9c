package telemetry

import (
	"context"

	"goa.design/clue/log"
)

// clueLogger delegates to goa.design/clue/log for structured logging.
type clueLogger struct{}

// NewClueLogger constructs a Logger backed by goa.design/clue/log. Callers
// must have configured the context via log.Context beforehand.
func NewClueLogger() Logger { return clueLogger{} }

func (clueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, kvFields(msg, keyvals)...)
}

func (clueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, kvFields(msg, keyvals)...)
}

func (clueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fields := append([]log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}, kvFields("", keyvals)...)
	log.Warn(ctx, fields...)
}

func (clueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, kvFields(msg, keyvals)...)
}

// kvFields converts a message plus variadic key-value pairs into Clue
// fielders. An empty msg omits the "msg" field (used by Warn, which adds it
// separately alongside "severity").
func kvFields(msg string, keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	if msg != "" {
		fielders = append(fielders, log.KV{K: "msg", V: msg})
	}
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fielders = append(fielders, log.KV{K: k, V: keyvals[i+1]})
	}
	return fielders
}

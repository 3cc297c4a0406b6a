package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/swayless/schema"
)

type contextKey int

const (
	verbKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithVerb annotates the context logger with the request verb if present.
func WithVerb(ctx context.Context, verb schema.Verb) pslog.Logger {
	log := pslog.Ctx(ctx)
	if verb != "" {
		if current, ok := ctx.Value(verbKey).(schema.Verb); ok && current == verb {
			return log
		}
		log = log.With("verb", verb)
	}
	return log
}

// WithOutput annotates the logger with the output name when available.
func WithOutput(log pslog.Logger, output schema.OutputName) pslog.Logger {
	if output != "" {
		log = log.With("output", output)
	}
	return log
}

// WithTag annotates the logger with a tag when available.
func WithTag(log pslog.Logger, tag schema.Tag) pslog.Logger {
	if tag != "" {
		log = log.With("tag", tag)
	}
	return log
}

// ContextWithVerb stores the verb marker on the context for log de-duplication.
func ContextWithVerb(ctx context.Context, verb schema.Verb) context.Context {
	if ctx == nil || verb == "" {
		return ctx
	}
	return context.WithValue(ctx, verbKey, verb)
}

// ContextWithVerbLogger attaches the logger and verb marker to the context.
func ContextWithVerbLogger(ctx context.Context, log pslog.Logger, verb schema.Verb) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithVerb(ctx, verb)
}

package logging

import "time"

// callLogger is implemented by loggers that understand model call metrics.
type callLogger interface {
	LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
}

// toolLogger is implemented by loggers that understand tool call metrics.
type toolLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
}

// stackLogger is implemented by loggers that can attach a stack trace.
type stackLogger interface {
	ErrorWithStack(err error, msg string, args ...any)
}

// strategyLogger is implemented by loggers that understand strategy metrics.
type strategyLogger interface {
	LogStrategyExecution(strategy string, agents int, dur time.Duration, success bool, err error)
}

// LLMCall forwards to l.LogLLMCall when available, otherwise emits a plain
// key/value entry so custom Logger implementations still see the call.
func LLMCall(l Logger, model string, tokens int, dur time.Duration, err error) {
	if cl, ok := l.(callLogger); ok {
		cl.LogLLMCall(model, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		l.Error("model.call.failed", "model", model, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.Debug("model.call.completed", "model", model, "token_count", tokens, "duration_ms", dur.Milliseconds())
}

// ToolCall forwards to l.LogToolCall when available.
func ToolCall(l Logger, tool string, dur time.Duration, err error) {
	if tl, ok := l.(toolLogger); ok {
		tl.LogToolCall(tool, dur, err == nil, err)
		return
	}
	if err != nil {
		l.Error("tool.call.failed", "tool", tool, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.Debug("tool.call.completed", "tool", tool, "duration_ms", dur.Milliseconds())
}

// StrategyExecution forwards to l.LogStrategyExecution when available.
func StrategyExecution(l Logger, strategy string, agents int, dur time.Duration, err error) {
	if sl, ok := l.(strategyLogger); ok {
		sl.LogStrategyExecution(strategy, agents, dur, err == nil, err)
		return
	}
	if err != nil {
		l.Error("strategy.execution.failed", "strategy", strategy, "agent_count", agents, "error", err.Error())
		return
	}
	l.Info("strategy.execution.completed", "strategy", strategy, "agent_count", agents, "duration_ms", dur.Milliseconds())
}

// Panic logs a recovered panic, with a stack trace when l supports one.
func Panic(l Logger, err error, msg string, args ...any) {
	if sl, ok := l.(stackLogger); ok {
		sl.ErrorWithStack(err, msg, args...)
		return
	}
	l.Error(msg, append(args, "error", err.Error())...)
}

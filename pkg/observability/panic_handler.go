package observability

import (
	"runtime/debug"
)

// RecoverPanic logs a recovered panic with its stack trace and swallows it.
// Call it in a defer statement; the panic is not re-raised, so the caller
// must be safe to continue (or exit) without the panicking work.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

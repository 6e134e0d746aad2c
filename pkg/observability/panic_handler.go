package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic and logs it with structured logging.
// Call it in a defer statement; the panic is not re-raised.
//
//	func (s *Syncer) tick() {
//	    defer observability.RecoverPanic(logger, "resync tick")
//	    // ...
//	}
func RecoverPanic(logger logrus.FieldLogger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it, and then runs callback.
// The callback only runs when a panic occurred.
func RecoverPanicWithCallback(logger logrus.FieldLogger, context string, callback func()) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
		if callback != nil {
			callback()
		}
	}
}

// MustRecover converts a recovered value to an error, nil when r is nil.
//
//	func invoke(p GroupProvider) (groups []string, err error) {
//	    defer func() {
//	        if rec := recover(); rec != nil {
//	            err = observability.MustRecover(rec)
//	        }
//	    }()
//	    return p(...), nil
//	}
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}

func logPanic(logger logrus.FieldLogger, context string, r interface{}) {
	orDefault(logger).WithFields(logrus.Fields{
		"panic":   r,
		"stack":   string(debug.Stack()),
		"context": context,
	}).Error("PANIC recovered")
}

package tpool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed resolves every future whose task was dropped by Close,
	// or enqueued after it.
	ErrPoolClosed = errors.New("tpool: pool closed")

	// ErrSpawnWorkers is returned by NewPoolWithConfig when the fixed worker set
	// could not be started.
	ErrSpawnWorkers = errors.New("tpool: failed to spawn workers")
)

// PanicError carries a panic recovered while running a task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tpool: task panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

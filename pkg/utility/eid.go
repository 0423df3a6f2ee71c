package utility

import (
	"sync"

	"github.com/google/uuid"
)

// ExecutionID identifies one run of the process or one backtest. Every fill is stamped with it.
type ExecutionID = uuid.UUID

var (
	executionID     ExecutionID
	executionIDOnce sync.Once
	executionIDMu   sync.RWMutex
)

func GetExecutionID() ExecutionID {
	executionIDOnce.Do(func() {
		executionIDMu.Lock()
		defer executionIDMu.Unlock()
		executionID = uuid.Must(uuid.NewV7())
	})

	executionIDMu.RLock()
	defer executionIDMu.RUnlock()
	return executionID
}

// ResetExecutionID starts a new execution, typically at the beginning of a backtest.
func ResetExecutionID() ExecutionID {
	executionIDOnce.Do(func() {})

	executionIDMu.Lock()
	defer executionIDMu.Unlock()

	executionID = uuid.Must(uuid.NewV7())
	return executionID
}

// NewOrderID returns a fresh order identifier in the canonical 8-4-4-4-12 hex layout.
func NewOrderID() string {
	return uuid.NewString()
}

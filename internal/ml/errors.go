package ml

import "errors"

// Expected, recoverable training/prediction outcomes. The orchestrator
// matches these with errors.Is, logs, and skips the cycle's publish step;
// they are never fatal.
var (
	// ErrInsufficientData means too few usable records to train.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrNoModel means predict was called before any successful train
	// for the requested key.
	ErrNoModel = errors.New("no trained model")

	// ErrNoHistory means predict was called with zero underlying records.
	ErrNoHistory = errors.New("no history")
)

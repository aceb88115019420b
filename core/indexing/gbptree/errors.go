package gbptree

import "errors"

// --- Error Definitions ---

var (
	ErrPageSizeTooSmall  = errors.New("page size too small for layout, each node kind must fit at least 2 keys")
	ErrInvalidGeneration = errors.New("generation out of range for generation safe pointer")
	ErrInvalidPointer    = errors.New("pointer out of range for generation safe pointer")
	ErrPointerCorruption = errors.New("generation safe pointer pair unreadable, data corruption suspected")
	ErrWriteVerification = errors.New("generation safe pointer write failed read-back verification")
	ErrInvalidReadResult = errors.New("expected a successful pointer read result")
)

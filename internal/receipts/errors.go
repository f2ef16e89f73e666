package receipts

import "errors"

var (
	// ErrInvalidDecision indicates a decision that cannot be canonically encoded.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrAppend indicates a log append that did not commit.
	ErrAppend = errors.New("receipt append failed")
	// ErrLogCorrupt indicates a log whose entries are out of sequence or fail their hash.
	ErrLogCorrupt = errors.New("receipt log corrupt")
	// ErrSeqConflict indicates another writer claimed the same sequence number.
	ErrSeqConflict = errors.New("receipt sequence conflict")
)

package domain

import "errors"

// sentinel errors shared across the ingestion core
var (
	// ErrSourceNotFound is returned when a source id does not exist
	ErrSourceNotFound = errors.New("source not found")

	// ErrDuplicate signals that an article already exists. It is a recognized
	// outcome, not a failure: the orchestrator counts it and moves on. A
	// unique-constraint violation on insert maps to the same error, so a
	// race-to-insert between the dedup check and the create resolves cleanly.
	ErrDuplicate = errors.New("duplicate article")
)

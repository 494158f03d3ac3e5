package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store (or is hidden by visibility rules)
// - ErrConflict: write collided with existing state
// - ErrInvalidState: record in wrong lifecycle state for requested operation
// - ErrPartialState: a multi-step write sequence stopped midway; retry is safe
// - ErrUnavailable: store or notifier temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrPartialState = errors.New("partial state")
	ErrUnavailable  = errors.New("unavailable")
)

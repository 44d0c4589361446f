package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and remote adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store or remote service
//   - ErrConflict: write collided with an existing record or a concurrent change
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrRejected: remote service refused the request (4xx other than 404)
//   - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrRejected     = errors.New("rejected")
	ErrUnavailable  = errors.New("unavailable")
)

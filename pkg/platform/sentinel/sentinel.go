package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored records, not policy decisions:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a uniqueness or slot constraint rejected the write
// - ErrLockTimeout: the item row lock could not be acquired in time
//
// Policy failures (overlaps, caps, ownership) are decided by the lifecycle
// services using pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrLockTimeout = errors.New("lock timeout")
)

package memory

import "errors"

// Primary store failure kinds. The Manager branches on these to decide
// logging detail; every one of them resolves to a fallback action, never
// to a caller-visible failure.
var (
	// ErrStoreUnavailable indicates the primary store could not be
	// reached (network, auth, or server-side failure).
	ErrStoreUnavailable = errors.New("primary store unavailable")

	// ErrStoreRejected indicates the primary store refused a write.
	ErrStoreRejected = errors.New("primary store rejected write")

	// ErrStoreQuery indicates a retrieval query failed against the
	// primary store.
	ErrStoreQuery = errors.New("primary store query failed")
)

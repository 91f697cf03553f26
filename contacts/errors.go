package contacts

import "errors"

// ErrFailedToMergeClusters means the overlap merge still found overlapping
// clusters after the maximum number of passes. Fatal for the current frame
// only; tracker state is preserved for the next one.
var ErrFailedToMergeClusters = errors.New("contacts: failed to merge overlapping clusters")

// ErrInvalidNeutralMode means the configured neutral-value algorithm is not
// one of mode, average, or constant. Raised at load time; the process
// refuses to start.
var ErrInvalidNeutralMode = errors.New("contacts: invalid neutral value mode")

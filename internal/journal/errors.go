package journal

import "errors"

// ErrEmptyKind is returned when an event is recorded without a kind.
var ErrEmptyKind = errors.New("journal: event kind is empty")

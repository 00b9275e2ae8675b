package cache

import "errors"

// ErrDisabled reports that the store has no live connection and is running
// in its degraded no-op mode.
var ErrDisabled = errors.New("cache: store disabled")

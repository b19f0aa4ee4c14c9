package converter

import "errors"

// ErrTimeout marks a conversion killed for running too long. It is the one
// render failure worth retrying.
var ErrTimeout = errors.New("renderer timeout")

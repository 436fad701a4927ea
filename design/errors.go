package design

import "errors"

// ErrMalformedConfig marks a configuration that is structurally invalid or
// references identifiers that do not exist. It is never recoverable.
var ErrMalformedConfig = errors.New("malformed configuration")

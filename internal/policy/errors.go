package policy

import "errors"

// ErrInvalidPolicy indicates a policy document that cannot be loaded.
var ErrInvalidPolicy = errors.New("invalid policy")

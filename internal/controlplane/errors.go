package controlplane

import "errors"

// Sentinel errors for the mutation API, checked with errors.Is by callers.
var (
	ErrAppNotFound   = errors.New("app not found")
	ErrDuplicateHost = errors.New("host already configured")
)

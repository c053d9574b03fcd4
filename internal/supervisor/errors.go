package supervisor

import "errors"

// Sentinel errors returned by child lifecycle operations, checked with
// errors.Is by callers such as the control plane's mutation API.
var (
	ErrDisabled        = errors.New("app is disabled")
	ErrPortConflict    = errors.New("port already in use by a running app")
	ErrNoStartCommand  = errors.New("app has no start command")
	ErrNotSupervised   = errors.New("no supervised app for host")
)

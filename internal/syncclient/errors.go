package syncclient

import "errors"

// ErrPermission is returned when the server rejects an action because the
// calling user lacks the required permission for the path. The executor
// responds by invoking the action's rejection reversal.
var ErrPermission = errors.New("syncclient: permission denied")

// ErrValidation is returned for a local or server-side content rule
// violation (oversized upload, malformed request). The action is left
// unchanged and retried next cycle; it is the caller's responsibility to
// notice a validation error never clears on retry.
var ErrValidation = errors.New("syncclient: validation failed")

// ErrServer marks a transient 5xx response.
var ErrServer = errors.New("syncclient: server error")

// ErrNetwork marks a transport-level failure (dial, timeout, connection reset).
var ErrNetwork = errors.New("syncclient: network error")

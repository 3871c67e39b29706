package lock

import "errors"

// ErrNotStarted — провайдер используется до Start или после Stop.
var ErrNotStarted = errors.New("lock provider not started")

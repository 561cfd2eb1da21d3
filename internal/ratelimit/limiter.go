// Package ratelimit implements fixed-window request admission.
//
// The window is a fixed counter, not a sliding log: the counter resets
// whenever the stored window start is more than one window in the
// past. This permits up to 2x burst across a window boundary, which is
// a documented simplification.
package ratelimit

import "context"

// Limiter admits or rejects a request for a caller identity. A false
// return is a structured "try again later" signal, not an error; the
// error return is reserved for backend failures (e.g. Redis down).
type Limiter interface {
	Admit(ctx context.Context, callerID string) (bool, error)
}

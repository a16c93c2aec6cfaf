package common

import "context"

// ContextAfterFunc runs f on its own goroutine once ctx is done. The returned
// stop function cancels it.
func ContextAfterFunc(ctx context.Context, f func()) (stop func() bool) {
	return context.AfterFunc(ctx, f)
}

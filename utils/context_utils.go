package utils

import "golang.org/x/net/context"

// CheckContextDone polls the provided context without blocking and indicates whether it has been cancelled. The
// engine checks it between contracts so an interrupted run stops at the next clean boundary.
func CheckContextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

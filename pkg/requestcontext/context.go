// Package requestcontext provides HTTP-independent accessors for
// request-scoped values, so services can read them without importing
// middleware.
//
// Usage in services:
//
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type requestTimeKey struct{}

// Now returns the request-scoped time, or the wall clock when none was set.
func Now(ctx context.Context) time.Time {
	if t, ok := Time(ctx); ok {
		return t
	}
	return time.Now()
}

// Time returns the request-scoped time if one was set.
func Time(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(requestTimeKey{}).(time.Time)
	return t, ok
}

// WithTime pins the time every operation of the request should use.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

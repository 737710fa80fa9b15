package jikan

import "context"

// SpanHook receives a notification for every span closed during the
// session, including spans force-closed by the shutdown drain. Hooks run
// synchronously on the command loop; failures are logged and never fail
// the session.
type SpanHook interface {
	OnSpanClosed(ctx context.Context, span ClosedSpan) error
}

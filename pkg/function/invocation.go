package function

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Invocation carries the per-call context the router resolves before
// handing off to a handler: identity, routing facts, and the log lines
// the handler wants surfaced back to the host.
type Invocation struct {
	ID           string
	FunctionName string
	RoutePrefix  string
	Path         string
	Params       map[string]string
	Logger       *zap.Logger

	mu   sync.Mutex
	logs []string
}

// Logf records a host-visible log line; the router copies collected
// lines into the result envelope's Logs array in call order.
func (inv *Invocation) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	inv.mu.Lock()
	inv.logs = append(inv.logs, line)
	inv.mu.Unlock()
	if inv.Logger != nil {
		inv.Logger.Info(line,
			zap.String("function", inv.FunctionName),
			zap.String("invocationId", inv.ID),
		)
	}
}

// Logs returns a copy of the collected log lines.
func (inv *Invocation) Logs() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]string(nil), inv.logs...)
}

type invocationKey struct{}

// WithInvocation attaches inv to ctx.
func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom retrieves the invocation context, or nil when the
// handler is being driven outside the router (tests, direct calls).
func InvocationFrom(ctx context.Context) *Invocation {
	inv, _ := ctx.Value(invocationKey{}).(*Invocation)
	return inv
}

package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"catmcp/internal/domain"
	"catmcp/internal/telemetry"
)

// Extras keys recognized by the built-in middleware.
const (
	ExtraScopes    = "scopes"
	ExtraConfirm   = "confirm"
	ExtraRequestID = "requestId"
)

// Conventional priorities for the built-in middleware. Application middleware
// slots in between as needed.
const (
	PriorityRequestMeta  = 0
	PriorityLogging      = 10
	PriorityMetrics      = 20
	PriorityAuth         = 30
	PriorityConfirmation = 40
)

// RequestMetaMiddleware stamps a request id and trace identifiers into the
// call context and extras.
func RequestMetaMiddleware() Middleware {
	return Middleware{
		Name:     "request_meta",
		Priority: PriorityRequestMeta,
		Handle: func(ctx context.Context, call *Call, next Next) (any, error) {
			requestID := ""
			if v, ok := call.Exec.Extra(ExtraRequestID); ok {
				requestID, _ = v.(string)
			}
			ctx, meta := telemetry.EnsureRequestMeta(ctx, requestID)
			if call.Exec.Extras == nil {
				call.Exec.Extras = make(map[string]any, 1)
			}
			call.Exec.Extras[ExtraRequestID] = meta.RequestID
			return next(ctx, call)
		},
	}
}

// LoggingMiddleware logs every dispatched call with its outcome and duration.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("dispatch")
	return Middleware{
		Name:     "logging",
		Priority: PriorityLogging,
		Handle: func(ctx context.Context, call *Call, next Next) (any, error) {
			start := time.Now()
			fields := []zap.Field{zap.String("tool", call.Meta.Name)}
			if id, ok := telemetry.RequestIDFromContext(ctx); ok {
				fields = append(fields, zap.String("request_id", id))
			}
			result, err := next(ctx, call)
			fields = append(fields, zap.Duration("duration", time.Since(start)))
			if err != nil {
				log.Warn("tool call failed", append(fields, zap.Error(err))...)
				return result, err
			}
			log.Debug("tool call complete", fields...)
			return result, nil
		},
	}
}

// MetricsMiddleware records invocation outcomes and durations.
func MetricsMiddleware(metrics domain.Metrics) Middleware {
	return Middleware{
		Name:     "metrics",
		Priority: PriorityMetrics,
		Handle: func(ctx context.Context, call *Call, next Next) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)
			if metrics == nil {
				return result, err
			}
			m := domain.InvocationMetric{
				Tool:     call.Meta.Name,
				Status:   domain.InvocationStatusSuccess,
				Duration: time.Since(start),
			}
			if err != nil {
				m.Status = domain.InvocationStatusError
				m.Type = Classify(err)
			}
			metrics.RecordInvocation(m)
			return result, err
		},
	}
}

// ScopeAuthMiddleware rejects calls whose caller scopes do not cover the
// tool's required scopes. Caller scopes come from the configured baseline
// plus any per-call "scopes" extra.
func ScopeAuthMiddleware(baseline []string) Middleware {
	return Middleware{
		Name:     "scope_auth",
		Priority: PriorityAuth,
		Handle: func(ctx context.Context, call *Call, next Next) (any, error) {
			if len(call.Meta.RequiredScopes) == 0 {
				return next(ctx, call)
			}
			granted := make(map[string]struct{}, len(baseline))
			for _, scope := range baseline {
				granted[scope] = struct{}{}
			}
			for _, scope := range call.Exec.StringsExtra(ExtraScopes) {
				granted[scope] = struct{}{}
			}
			for _, required := range call.Meta.RequiredScopes {
				if _, ok := granted[required]; !ok {
					return nil, domain.E(domain.ErrorTypeAuthorization, call.Meta.Name,
						fmt.Sprintf("missing required scope %q", required), nil)
				}
			}
			return next(ctx, call)
		},
	}
}

// ConfirmationMiddleware gates destructive tools behind an explicit confirm
// extra supplied by the caller.
func ConfirmationMiddleware() Middleware {
	return Middleware{
		Name:     "confirmation",
		Priority: PriorityConfirmation,
		Handle: func(ctx context.Context, call *Call, next Next) (any, error) {
			if !call.Meta.RequiresConfirmation {
				return next(ctx, call)
			}
			if call.Exec.BoolExtra(ExtraConfirm) {
				return next(ctx, call)
			}
			return nil, domain.E(domain.ErrorTypeValidation, call.Meta.Name,
				"tool requires confirmation: pass the confirm flag to proceed", nil)
		},
	}
}

package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	ownerKey     ctxKey = "owner_id"
	requestIDKey ctxKey = "request_id"
)

// OwnerMiddleware takes the cart owner from X-User-ID. Authentication happens upstream in
// the gateway, which sets the header after validating the token.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if ownerID == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request and a request-scoped logger
// carrying the request ID and, when the request is traced, the trace ID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		log := logging.New("http").With("request_id", requestID)
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			log = log.With("trace_id", sc.TraceID().String())
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = logging.WithCtx(ctx, log)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFromContext(ctx context.Context) string {
	if ownerID, ok := ctx.Value(ownerKey).(string); ok {
		return ownerID
	}
	return ""
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/leadpool/internal/entity"
)

// StaffHeader carries the authenticated staff id set by the auth gateway.
const StaffHeader = "X-Staff-ID"

type contextKey string

const callerKey contextKey = "caller"

// CallerResolver maps an authenticated staff id to its role and scope.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, staffID int64) (*entity.Caller, error)
}

// Identity attaches the caller to the request context. Requests without the
// header pass through without a caller and are rejected by the use cases.
func Identity(resolver CallerResolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(StaffHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			staffID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || staffID <= 0 {
				deny(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid staff id")
				return
			}

			caller, err := resolver.ResolveCaller(r.Context(), staffID)
			switch {
			case errors.Is(err, entity.ErrStaffNotFound):
				deny(w, http.StatusUnauthorized, "UNAUTHENTICATED", "unknown staff")
				return
			case err != nil:
				log.Error("resolve caller", zap.Int64("staff_id", staffID), zap.Error(err))
				deny(w, http.StatusServiceUnavailable, "UNAVAILABLE", "identity lookup failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func WithCaller(ctx context.Context, caller *entity.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom returns the request's caller, or nil when unauthenticated.
func CallerFrom(ctx context.Context) *entity.Caller {
	caller, _ := ctx.Value(callerKey).(*entity.Caller)
	return caller
}

func deny(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": msg})
}

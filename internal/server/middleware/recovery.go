package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	apperrors "github.com/streamwarden/streamwarden/internal/errors"
)

// Recovery turns a panicking handler into a 500 error envelope and logs the
// stack.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Recovered from handler panic",
						zap.String("path", r.URL.Path),
						zap.String("requestID", GetRequestID(r.Context())),
						zap.Any("panic", rec),
						zap.ByteString("stack", debug.Stack()))

					err := apperrors.WrapInternal(r.Context(), fmt.Errorf("panic: %v", rec), "internal server error")
					apperrors.RespondWithError(w, r, err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fazamuttaqien/eventcal/helper"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"go.uber.org/zap"
)

// ErrorMiddleware recovers from panics, logs them and writes a JSON error response.
func ErrorMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				var err error
				switch typedRec := rec.(type) {
				case string:
					err = errors.New(typedRec)
				case error:
					err = typedRec
				default:
					err = fmt.Errorf("unknown panic type: %v", typedRec)
				}

				statusCode := http.StatusInternalServerError
				message := "An unexpected internal error occurred."
				var details any

				var appErr *appError.AppError
				if errors.As(err, &appErr) {
					statusCode = appErr.HTTPStatus()
					message = appErr.Error()
					details = appErr.GetErrorDetail()
				}

				logger.Error("panic recovered",
					zap.Error(err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)

				helper.ResponseErrorJson(w, statusCode, message, details)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

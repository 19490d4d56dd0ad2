package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fazamuttaqien/eventcal/pkg/enum"
	pkgValidator "github.com/fazamuttaqien/eventcal/pkg/validator"
	"go.uber.org/zap"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// WithValidation decodes the JSON body into T, validates it and stores it in the
// request context for the handler.
func WithValidation[T any]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var dto T

			if r.Body == nil || r.Body == http.NoBody {
				pkgValidator.WriteValidationErrorResponse(w, http.StatusBadRequest, enum.ValidationError, "Request body is empty.", nil)
				return
			}
			decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&dto); err != nil {
				pkgValidator.WriteValidationErrorResponse(w, http.StatusBadRequest, enum.ValidationError, "Invalid request body.", []pkgValidator.ValidationErrorDetail{
					{Field: "body", Message: err.Error()},
				})
				return
			}

			if err := pkgValidator.Validate.Struct(dto); err != nil {
				var ve validator.ValidationErrors
				if errors.As(err, &ve) {
					pkgValidator.WriteValidationErrorResponse(w, http.StatusBadRequest, enum.ValidationError, "Validation failed", pkgValidator.FormatValidationErrors(ve))
					return
				}
				zap.L().Error("unexpected validation error", zap.Error(err))
				pkgValidator.WriteValidationErrorResponse(w, http.StatusInternalServerError, enum.InternalServerError, "Error during validation process.", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(pkgValidator.WithValidatedDTO(r.Context(), dto)))
		})
	}
}

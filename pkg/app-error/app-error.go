package appError

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"go.uber.org/zap"
)

// ErrorDetail holds configuration details for a specific application ErrorCode.
type ErrorDetail struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// appErrorConfig maps application error codes to their details.
var appErrorConfig = map[enum.ErrorCode]ErrorDetail{
	enum.AuthUserNotFound: {
		HTTPStatus: http.StatusNotFound,
		Message:    "Authentication failed: User not found",
	},
	enum.AuthEmailAlreadyExists: {
		HTTPStatus: http.StatusConflict,
		Message:    "Cannot register: Email address is already in use.",
	},
	enum.AuthInvalidToken: {
		HTTPStatus: http.StatusUnauthorized,
		Message:    "Authentication failed: Invalid or expired token.",
	},
	enum.AuthUnauthorizedAccess: {
		HTTPStatus: http.StatusUnauthorized,
		Message:    "Authentication required to access this resource.",
	},
	enum.AuthTokenNotFound: {
		HTTPStatus: http.StatusUnauthorized,
		Message:    "Authentication token not provided.",
	},
	enum.AccessUnauthorized: {
		HTTPStatus: http.StatusForbidden,
		Message:    "Access denied: You do not have permission to perform this action.",
	},
	enum.AccessTierRequired: {
		HTTPStatus: http.StatusForbidden,
		Message:    "Access denied: This event requires a higher membership tier.",
	},
	enum.ValidationError: {
		HTTPStatus: http.StatusBadRequest,
		Message:    "Input validation failed.",
	},
	enum.BadRequest: {
		HTTPStatus: http.StatusBadRequest,
		Message:    "The request could not be processed.",
	},
	enum.ResourceNotFound: {
		HTTPStatus: http.StatusNotFound,
		Message:    "The requested resource could not be found.",
	},
	enum.ResourceConflict: {
		HTTPStatus: http.StatusConflict,
		Message:    "The request conflicts with the current state of the resource.",
	},
	enum.SyncInProgress: {
		HTTPStatus: http.StatusConflict,
		Message:    "A calendar sync is already running for this integration.",
	},
	enum.IntegrationDisabled: {
		HTTPStatus: http.StatusConflict,
		Message:    "The calendar integration is disabled.",
	},
	enum.ProviderUnavailable: {
		HTTPStatus: http.StatusBadGateway,
		Message:    "The calendar provider could not be reached.",
	},
	enum.IntegrationReauthRequired: {
		HTTPStatus: http.StatusConflict,
		Message:    "The calendar integration must be reconnected.",
	},
	enum.InternalServerError: {
		HTTPStatus: http.StatusInternalServerError,
		Message:    "An unexpected internal error occurred. Please try again later.",
	},
}

// AppError is a custom error type for application-specific errors.
type AppError struct {
	Code    enum.ErrorCode // The specific application error code
	Message string         // Overrides the default message when set
	Err     error          // The underlying wrapped error, if any
}

// NewAppError creates a new application error.
// If msg is empty, the default message for the code is used when Error() is called.
func NewAppError(code enum.ErrorCode, msg string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: msg,
		Err:     cause,
	}
}

// GetErrorDetail retrieves the configured details for the error's code.
// Unmapped codes fall back to an internal server error.
func (e *AppError) GetErrorDetail() ErrorDetail {
	detail, ok := appErrorConfig[e.Code]
	if !ok {
		return ErrorDetail{
			HTTPStatus: http.StatusInternalServerError,
			Code:       enum.InternalServerError.String(),
			Message:    "An unknown internal error occurred.",
		}
	}
	detail.Code = e.Code.String()
	return detail
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.GetErrorDetail().Message
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *AppError) HTTPStatus() int {
	return e.GetErrorDetail().HTTPStatus
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// --- Helper Functions for Common Errors ---

func NewNotFoundError(resource string, cause error) *AppError {
	msg := fmt.Sprintf("Resource '%s' not found.", resource)
	if resource == "" {
		msg = ""
	}
	return NewAppError(enum.ResourceNotFound, msg, cause)
}

func NewValidationError(specificMessage string, cause error) *AppError {
	return NewAppError(enum.ValidationError, specificMessage, cause)
}

func NewUnauthorizedError(cause error) *AppError {
	return NewAppError(enum.AccessUnauthorized, "", cause)
}

func NewConflictError(msg string, cause error) *AppError {
	return NewAppError(enum.ResourceConflict, msg, cause)
}

func NewInternalError(msg string, cause error) *AppError {
	return NewAppError(enum.InternalServerError, msg, cause)
}

// WriteError writes err as a JSON error response. Non-AppError values become a 500.
// Server-side failures are logged with their cause; client errors at debug level.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus()
		fields := []zap.Field{
			zap.String("code", appErr.Code.String()),
			zap.Int("status", status),
			zap.String("message", appErr.Error()),
		}
		if cause := appErr.Unwrap(); cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		if status >= http.StatusInternalServerError {
			zap.L().Error("request failed", fields...)
		} else {
			zap.L().Debug("request rejected", fields...)
		}
		helper.ResponseErrorJson(w, status, appErr.Error(), appErr.GetErrorDetail())
		return
	}

	zap.L().Error("unhandled internal error", zap.Error(err))
	helper.ResponseErrorJson(w, http.StatusInternalServerError, "An unexpected internal error occurred.", nil)
}

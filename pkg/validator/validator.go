package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/fazamuttaqien/eventcal/types"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ValidationErrorDetail describes a single validation failure.
type ValidationErrorDetail struct {
	Field   string `json:"field"`   // Field name that failed validation
	Message any    `json:"message"` // Validation error message(s) (can be map or string)
}

// ValidationErrorResponse is the structured JSON response for validation errors.
type ValidationErrorResponse struct {
	Message   string                  `json:"message"`
	ErrorCode enum.ErrorCode          `json:"errorCode"`
	Errors    []ValidationErrorDetail `json:"errors"`
}

// Validator instance (create once for efficiency)
var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// Report json names instead of Go field names.
	Validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister("event_type", enumTag(enum.EventTypeValues(), false))
	mustRegister("frequency", enumTag(enum.FrequencyValues(), true))
	mustRegister("weekday", enumTag(stringsOf(enum.AllDayOfWeek()), true))
	mustRegister("lunar_phase", enumTag(stringsOf(enum.AllLunarPhase()), true))
	mustRegister("event_access", enumTag(stringsOf(enum.AllEventAccess()), false))
	mustRegister("member_tier", enumTag(stringsOf(enum.AllMemberTier()), false))
	mustRegister("sync_direction", enumTag(stringsOf(enum.AllSyncDirection()), true))
}

func mustRegister(tag string, fn validator.Func) {
	if err := Validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// enumTag accepts empty strings; pair it with "required" where a value is mandatory.
func enumTag(allowed []string, foldCase bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		v := fl.Field().String()
		if v == "" {
			return true
		}
		if foldCase {
			v = strings.ToUpper(v)
		}
		return slices.Contains(allowed, v)
	}
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// FormatValidationErrors translates validator errors into the desired response structure.
func FormatValidationErrors(ve validator.ValidationErrors) []ValidationErrorDetail {
	out := make([]ValidationErrorDetail, len(ve))
	for i, fe := range ve {
		out[i] = ValidationErrorDetail{
			Field:   fieldPath(fe),
			Message: ValidationMessageForTag(fe),
		}
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace ("CreateEventDto.recurrence.freq").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// ValidationMessageForTag provides a basic error message for a validation tag.
func ValidationMessageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "required_if":
		return "This field is required for the selected option"
	case "excluded_unless", "excluded_with":
		return "This field is not allowed here"
	case "email":
		return "Invalid email format"
	case "url":
		return "Invalid URL"
	case "uuid", "uuid4":
		return "Invalid identifier"
	case "min", "gte":
		return fmt.Sprintf("Value must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("Value must not exceed %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("Value must be after %s", fe.Param())
	case "timezone":
		return "Unknown IANA time zone"
	case "event_type":
		return "Must be one of " + strings.Join(enum.EventTypeValues(), ", ")
	case "frequency":
		return "Must be one of " + strings.Join(enum.FrequencyValues(), ", ")
	case "weekday":
		return "Must be a two-letter weekday (MO..SU)"
	case "lunar_phase":
		return "Must be one of NEW, FIRST_QUARTER, FULL, LAST_QUARTER"
	case "sync_direction":
		return "Must be one of IMPORT, EXPORT, BIDIRECTIONAL"
	case "event_access", "member_tier":
		return fmt.Sprintf("Invalid value %v", fe.Value())
	default:
		if msg, ok := structMessages[fe.Tag()]; ok {
			return msg
		}
		return fmt.Sprintf("Invalid value (validation: %s)", fe.Tag())
	}
}

// structMessages holds messages for tags reported by struct-level validators.
var structMessages = map[string]string{}

// RegisterStructRule registers a struct-level validation together with the messages of the
// tags it reports.
func RegisterStructRule(fn validator.StructLevelFunc, messages map[string]string, targets ...any) {
	for tag, msg := range messages {
		structMessages[tag] = msg
	}
	Validate.RegisterStructValidation(fn, targets...)
}

// GetValidatedDTO retrieves the validated DTO from context, performing type assertion.
func GetValidatedDTO[T any](ctx context.Context) (T, error) {
	dto, ok := ctx.Value(types.ValidatedDTOKey).(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("could not retrieve validated DTO from context or type mismatch")
	}
	return dto, nil
}

// WithValidatedDTO stores dto the way the validation middleware does.
func WithValidatedDTO[T any](ctx context.Context, dto T) context.Context {
	return context.WithValue(ctx, types.ValidatedDTOKey, dto)
}

// WriteValidationErrorResponse is a helper to write structured JSON error responses.
func WriteValidationErrorResponse(
	w http.ResponseWriter,
	code int, errorCode enum.ErrorCode,
	message string, detail []ValidationErrorDetail,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	response := ValidationErrorResponse{
		Message:   message,
		ErrorCode: errorCode,
		Errors:    detail,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		zap.L().Warn("encode validation response", zap.Error(err))
	}
}

package enum

// ErrorCode represents specific error identifiers used throughout the application.
type ErrorCode string

const (
	// --- Authentication Errors ---

	// AuthUserNotFound indicates the user was not found during an auth process.
	AuthUserNotFound ErrorCode = "AUTH_USER_NOT_FOUND"
	// AuthEmailAlreadyExists indicates an attempt to register with an existing email.
	AuthEmailAlreadyExists ErrorCode = "AUTH_EMAIL_ALREADY_EXISTS"
	// AuthInvalidToken indicates a provided token is invalid or expired.
	AuthInvalidToken ErrorCode = "AUTH_INVALID_TOKEN"
	// AuthUnauthorizedAccess indicates missing or insufficient credentials for an action.
	AuthUnauthorizedAccess ErrorCode = "AUTH_UNAUTHORIZED_ACCESS"
	// AuthTokenNotFound indicates that an expected authentication token was not provided.
	AuthTokenNotFound ErrorCode = "AUTH_TOKEN_NOT_FOUND"

	// --- Access Control Errors ---

	// AccessUnauthorized indicates the authenticated user lacks permission for the resource/action.
	AccessUnauthorized ErrorCode = "ACCESS_UNAUTHORIZED"
	// AccessTierRequired indicates the event requires a higher membership tier.
	AccessTierRequired ErrorCode = "ACCESS_TIER_REQUIRED"

	// --- Validation and Resource Errors ---

	ValidationError  ErrorCode = "VALIDATION_ERROR"
	ResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	// ResourceConflict indicates the request conflicts with current resource state.
	ResourceConflict ErrorCode = "RESOURCE_CONFLICT"
	BadRequest       ErrorCode = "BAD_REQUEST"

	// --- Calendar Sync Errors ---

	// SyncInProgress indicates another sync run holds the integration lock.
	SyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	// IntegrationDisabled indicates the integration was disconnected by its owner.
	IntegrationDisabled ErrorCode = "INTEGRATION_DISABLED"
	// ProviderUnavailable indicates the remote calendar provider could not be reached.
	ProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	// IntegrationReauthRequired indicates the stored refresh token was rejected.
	IntegrationReauthRequired ErrorCode = "INTEGRATION_REAUTH_REQUIRED"

	// --- System Errors ---

	InternalServerError ErrorCode = "INTERNAL_SERVER_ERROR"
)

// AllErrorCodes returns a slice containing all possible ErrorCode values.
func AllErrorCodes() []ErrorCode {
	return []ErrorCode{
		AuthUserNotFound,
		AuthEmailAlreadyExists,
		AuthInvalidToken,
		AuthUnauthorizedAccess,
		AuthTokenNotFound,
		AccessUnauthorized,
		AccessTierRequired,
		ValidationError,
		ResourceNotFound,
		ResourceConflict,
		BadRequest,
		SyncInProgress,
		IntegrationDisabled,
		ProviderUnavailable,
		IntegrationReauthRequired,
		InternalServerError,
	}
}

// IsValid checks if the ErrorCode value is one of the predefined constants.
func (ec ErrorCode) IsValid() bool {
	for _, c := range AllErrorCodes() {
		if c == ec {
			return true
		}
	}
	return false
}

func (ec ErrorCode) String() string {
	return string(ec)
}

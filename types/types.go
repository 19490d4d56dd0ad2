package types

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// ValidatedDTOKey holds the validated request body.
	ValidatedDTOKey ContextKey = "validatedDTO"
	// UserIDKey holds the authenticated user's ID.
	UserIDKey ContextKey = "userId"
)

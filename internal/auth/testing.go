package auth

import "context"

// SetUserIDForTest injects a user ID into the context for testing purposes.
func SetUserIDForTest(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// SetGuestForTest marks the context as a guest session for testing purposes.
func SetGuestForTest(ctx context.Context) context.Context {
	return context.WithValue(ctx, guestKey, true)
}

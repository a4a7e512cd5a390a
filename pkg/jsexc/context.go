// context.go propagates the originating realm through context.Context.

package jsexc

import "context"

type realmIDKey struct{}

// WithRealmID returns a context carrying the ID of the realm a message came from.
func WithRealmID(ctx context.Context, realmID string) context.Context {
	return context.WithValue(ctx, realmIDKey{}, realmID)
}

// RealmIDFromContext extracts the realm ID.
// Returns empty string and false if not set or empty.
func RealmIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(realmIDKey{}).(string)
	return id, ok && id != ""
}

package memory

import "context"

// NewStore returns a durable PostgreSQL store when a database URL is
// configured, otherwise an in-process ephemeral store.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	return NewEphemeralStore(), nil
}

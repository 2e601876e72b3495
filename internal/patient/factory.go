package patient

import "context"

// NewDirectory returns a PostgreSQL-backed directory when a database URL is
// configured, otherwise an empty static directory so every caller resolves
// ephemeral.
func NewDirectory(ctx context.Context, databaseURL string) (Directory, error) {
	if databaseURL != "" {
		return NewPostgresDirectory(ctx, databaseURL)
	}
	return NewStaticDirectory(), nil
}

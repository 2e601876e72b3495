package patient

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Resolution is the outcome of resolving a raw call identity. Durable
// resolutions are keyed by the registered patient ID and carry the profile;
// ephemeral resolutions are keyed by the raw identity and carry no profile.
type Resolution struct {
	Durable bool
	Key     string
	Profile *Profile
}

// Resolver maps raw call identities onto the patient directory.
type Resolver struct {
	dir Directory
	log zerolog.Logger
}

func NewResolver(dir Directory, log zerolog.Logger) *Resolver {
	return &Resolver{dir: dir, log: log}
}

// Resolve never fails: directory errors and unknown identities degrade to an
// ephemeral resolution keyed by the raw identity, so the call proceeds with
// in-memory state only.
func (r *Resolver) Resolve(ctx context.Context, identity string) Resolution {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Resolution{Key: "unknown"}
	}

	var (
		profile *Profile
		err     error
	)
	if isUUID(identity) {
		profile, err = r.dir.FindByID(ctx, identity)
	} else {
		// Codes are not format-gated: a registered code in any shape
		// still resolves durably.
		profile, err = r.dir.FindByCode(ctx, identity)
	}
	if errors.Is(err, ErrNotFound) && isUUID(identity) {
		profile, err = r.dir.FindByCode(ctx, identity)
	}

	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Warn().Err(err).Str("identity", identity).
				Msg("patient lookup failed, continuing ephemeral")
		}
		return Resolution{Key: identity}
	}

	return Resolution{Durable: true, Key: profile.ID, Profile: profile}
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

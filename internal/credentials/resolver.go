package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/store"
)

// CredentialStore is the slice of the persistence layer the resolver
// reads from.
type CredentialStore interface {
	GetCredentialForTeam(ctx context.Context, teamID int64) (core.TeamCredential, error)
}

// Resolved is the environment a provisioning attempt hands to the tool
// process. Secrets lists every value that must never appear in notes,
// logs, or API payloads.
type Resolved struct {
	Env     []string
	Secrets []string
}

// Resolver looks up a team's cloud credential (or the global fallback)
// and opens its sealed fields into process environment variables. The
// decrypted values exist only in the returned struct; nothing here
// persists or logs them.
type Resolver struct {
	store  CredentialStore
	cipher *FieldCipher
}

func NewResolver(store CredentialStore, cipher *FieldCipher) *Resolver {
	return &Resolver{store: store, cipher: cipher}
}

// Resolve builds the credential environment for a team. A team with no
// credential row anywhere resolves to an empty environment: the tool
// then runs under whatever ambient identity the host provides.
func (r *Resolver) Resolve(ctx context.Context, teamID int64) (Resolved, error) {
	cred, err := r.store.GetCredentialForTeam(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return Resolved{}, nil
	}
	if err != nil {
		return Resolved{}, fmt.Errorf("look up credential for team %d: %w", teamID, err)
	}

	accessKeyID, err := r.cipher.Open(cred.AccessKeyIDSealed)
	if err != nil {
		return Resolved{}, fmt.Errorf("open access key id: %w", err)
	}
	secretKey, err := r.cipher.Open(cred.SecretKeySealed)
	if err != nil {
		return Resolved{}, fmt.Errorf("open secret key: %w", err)
	}
	sessionToken, err := r.cipher.Open(cred.SessionTokenSealed)
	if err != nil {
		return Resolved{}, fmt.Errorf("open session token: %w", err)
	}

	res := Resolved{
		Env: []string{
			"AWS_ACCESS_KEY_ID=" + accessKeyID,
			"AWS_SECRET_ACCESS_KEY=" + secretKey,
		},
		Secrets: []string{secretKey},
	}
	if sessionToken != "" {
		res.Env = append(res.Env, "AWS_SESSION_TOKEN="+sessionToken)
		res.Secrets = append(res.Secrets, sessionToken)
	}
	if cred.Region != "" {
		res.Env = append(res.Env, "AWS_REGION="+cred.Region, "AWS_DEFAULT_REGION="+cred.Region)
	}
	return res, nil
}

package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

// LocalAuthenticator mints non-expiring identities without a remote auth
// server. Pairs with local storage, where tokens are never checked.
type LocalAuthenticator struct{}

func (LocalAuthenticator) SignUpAnonymous(context.Context) (domain.Identity, error) {
	return domain.Identity{
		UserID:      uuid.NewString(),
		AccessToken: "local-" + uuid.NewString(),
		Anonymous:   true,
	}, nil
}

func (LocalAuthenticator) Refresh(context.Context, string) (domain.Identity, error) {
	return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "local refresh", errors.New("local identities do not expire"))
}

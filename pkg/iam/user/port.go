package user

import (
	"context"

	"github.com/screencraft/api/pkg/kernel"
)

type Repository interface {
	Create(ctx context.Context, u User) error
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByProviderExternalID(ctx context.Context, provider string, externalID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u User) error
}

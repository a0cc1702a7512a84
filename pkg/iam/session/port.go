package session

import (
	"context"

	"github.com/screencraft/api/pkg/kernel"
)

type Repository interface {
	Create(ctx context.Context, s Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID kernel.UserID) error
	CleanExpired(ctx context.Context) (int64, error)
}

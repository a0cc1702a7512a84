package apikeysrv

import (
	"context"
	"time"

	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/iam/apikey"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/google/uuid"
)

type Service struct {
	keys    apikey.Repository
	tenants tenant.Repository
}

func NewService(keys apikey.Repository, tenants tenant.Repository) *Service {
	return &Service{keys: keys, tenants: tenants}
}

// Create mints a new key for an active tenant. The plaintext secret is
// returned exactly once.
func (s *Service) Create(ctx context.Context, tenantID kernel.TenantID, req apikey.CreateRequest) (*apikey.CreateResponse, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, tenant.ErrSuspended()
	}

	env := req.Environment
	if env == "" {
		env = apikey.EnvLive
	}

	generated, err := apikey.GenerateAPIKey(env)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newKey := apikey.APIKey{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		KeyHash:   generated.KeyHash,
		Prefix:    generated.Prefix,
		Name:      req.Name,
		IsActive:  true,
		CreatedAt: now,
	}

	if err := s.keys.Save(ctx, newKey); err != nil {
		return nil, errx.Wrap(err, "failed to save API key", errx.TypeInternal)
	}

	return &apikey.CreateResponse{
		APIKey:    newKey.ToDTO(),
		SecretKey: generated.Plaintext,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string, tenantID kernel.TenantID) (*apikey.DTO, error) {
	key, err := s.keys.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	dto := key.ToDTO()
	return &dto, nil
}

func (s *Service) List(ctx context.Context, tenantID kernel.TenantID) ([]apikey.DTO, error) {
	keys, err := s.keys.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, errx.Wrap(err, "failed to list API keys", errx.TypeInternal)
	}
	dtos := make([]apikey.DTO, 0, len(keys))
	for _, k := range keys {
		dtos = append(dtos, k.ToDTO())
	}
	return dtos, nil
}

func (s *Service) Revoke(ctx context.Context, id string, tenantID kernel.TenantID) error {
	key, err := s.keys.FindByID(ctx, id, tenantID)
	if err != nil {
		return err
	}
	key.Revoke(time.Now().UTC())
	return s.keys.Save(ctx, *key)
}

func (s *Service) Delete(ctx context.Context, id string, tenantID kernel.TenantID) error {
	if _, err := s.keys.FindByID(ctx, id, tenantID); err != nil {
		return err
	}
	return s.keys.Delete(ctx, id, tenantID)
}

// Validate authenticates a plaintext key: format check, hash lookup,
// liveness check. It asynchronously stamps last-used like the teacher's
// fire-and-forget update, since that write must never add latency to the
// request's critical path.
func (s *Service) Validate(ctx context.Context, plaintext string) (*apikey.APIKey, error) {
	if !apikey.ValidateAPIKeyFormat(plaintext) {
		return nil, apikey.ErrInvalid()
	}

	key, err := s.keys.FindByHash(ctx, apikey.HashAPIKey(plaintext))
	if err != nil {
		return nil, apikey.ErrInvalid()
	}

	if !key.IsValid() {
		return nil, apikey.ErrRevoked()
	}

	go s.keys.UpdateLastUsed(context.Background(), key.ID)

	return key, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var userTracer = otel.Tracer("service/user")

const profileCacheLabel = "user_profile"

// UserService manages console user profiles. Profiles are read on every
// authenticated request, so reads go through a short-lived cache.
type UserService struct {
	store   port.UserStore
	cache   port.Cache[*domain.UserProfile]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(store port.UserStore, cache port.Cache[*domain.UserProfile], metrics *observability.Metrics, logger *zap.Logger) *UserService {
	return &UserService{store: store, cache: cache, metrics: metrics, logger: logger}
}

// GetProfile returns a profile by id.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	ctx, span := userTracer.Start(ctx, "UserService.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if cached, ok := s.cache.Get(userID); ok {
		s.metrics.IncrCacheHit(profileCacheLabel)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(profileCacheLabel)

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	s.cache.Set(userID, user)
	return user, nil
}

// Get returns a profile the actor may see: their own, or any for admins.
func (s *UserService) Get(ctx context.Context, actor *domain.UserProfile, userID string) (*domain.UserProfile, error) {
	if actor == nil {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, &domain.ErrForbidden{Action: "ver outro usuário"}
	}
	return s.GetProfile(ctx, userID)
}

// List returns every profile. Admin only.
func (s *UserService) List(ctx context.Context, actor *domain.UserProfile, page, pageSize int) (*domain.ListResponse[domain.UserProfile], error) {
	ctx, span := userTracer.Start(ctx, "UserService.List")
	defer span.End()

	if err := requireAdmin(actor, "listar usuários"); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	users, total, err := s.store.ListUsers(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return listResponse(users, total, page, pageSize), nil
}

// CreateProfile stores the profile of a freshly signed-up user.
func (s *UserService) CreateProfile(ctx context.Context, u *domain.UserProfile) (*domain.UserProfile, error) {
	ctx, span := userTracer.Start(ctx, "UserService.CreateProfile")
	defer span.End()

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if created == nil {
		created = u
	}
	s.cache.Delete(created.ID)
	return created, nil
}

// Update changes a profile. Users edit themselves; only admins may edit
// others or change role and active.
func (s *UserService) Update(ctx context.Context, actor *domain.UserProfile, userID string, req *domain.UpdateUserRequest) (*domain.UserProfile, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if actor == nil || !actor.Active {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida"}
	}
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, &domain.ErrForbidden{Action: "editar outro usuário"}
	}
	if (req.Role != nil || req.Active != nil) && !actor.IsAdmin() {
		return nil, &domain.ErrForbidden{Action: "alterar papel ou status"}
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, &domain.ErrValidation{Field: "role", Message: "papel inválido"}
		}
		updates["role"] = *req.Role
	}
	if req.Active != nil {
		if !*req.Active && actor.ID == userID {
			return nil, &domain.ErrValidation{Field: "active", Message: "não é possível desativar o próprio usuário"}
		}
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "Nenhum campo para atualizar"}
	}

	return s.apply(ctx, userID, updates)
}

// Deactivate disables a user. Admin only; admins cannot disable themselves.
func (s *UserService) Deactivate(ctx context.Context, actor *domain.UserProfile, userID string) (*domain.UserProfile, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Deactivate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := requireAdmin(actor, "desativar usuário"); err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "não é possível desativar o próprio usuário"}
	}

	user, err := s.apply(ctx, userID, map[string]any{"active": false})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user deactivated", zap.String("user_id", userID), zap.String("by", actor.ID))
	return user, nil
}

func (s *UserService) apply(ctx context.Context, userID string, updates map[string]any) (*domain.UserProfile, error) {
	user, err := s.store.UpdateUser(ctx, userID, updates)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.cache.Delete(userID)
	if user == nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return user, nil
}

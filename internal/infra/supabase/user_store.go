package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// UserStore and SettingsStore implementation
// ============================================================

func (c *Client) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("%s?id=eq.%s&limit=1", tableUsers, url.QueryEscape(userID))
	var user *domain.UserProfile
	err := c.execute(ctx, "supabase/users", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		user, err = decodeFirst[domain.UserProfile](body)
		return err
	})
	return user, err
}

func (c *Client) ListUsers(ctx context.Context, page, pageSize int) ([]domain.UserProfile, int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListUsers")
	defer span.End()

	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("order", "name.asc")
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa((page-1)*pageSize))

	var (
		users []domain.UserProfile
		total int
	)
	err := c.execute(ctx, "supabase/users", func() error {
		body, n, err := c.doCount(ctx, tableUsers+"?"+q.Encode())
		if err != nil {
			return err
		}
		users = []domain.UserProfile{}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &users); err != nil {
				return fmt.Errorf("decode user_profiles: %w", err)
			}
		}
		total = n
		return nil
	})
	if total < len(users) {
		total = len(users)
	}
	return users, total, err
}

func (c *Client) CreateUser(ctx context.Context, u *domain.UserProfile) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	data := map[string]any{
		"id":           u.ID,
		"name":         u.Name,
		"email":        u.Email,
		"phone":        u.Phone,
		"company_name": u.CompanyName,
		"role":         u.Role,
		"active":       u.Active,
	}

	var created *domain.UserProfile
	err := c.execute(ctx, "supabase/users", func() error {
		// Upsert on id keeps a retried insert idempotent.
		body, err := c.doUpsert(ctx, tableUsers, data)
		if err != nil {
			return err
		}
		created, err = decodeFirst[domain.UserProfile](body)
		return err
	})
	return created, err
}

func (c *Client) UpdateUser(ctx context.Context, userID string, updates map[string]any) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUser")
	defer span.End()

	updates["updated_at"] = time.Now().UTC()
	path := fmt.Sprintf("%s?id=eq.%s", tableUsers, url.QueryEscape(userID))

	var user *domain.UserProfile
	err := c.execute(ctx, "supabase/users", func() error {
		body, err := c.doPatch(ctx, path, updates)
		if err != nil {
			return err
		}
		user, err = decodeFirst[domain.UserProfile](body)
		return err
	})
	return user, err
}

func (c *Client) GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSettings")
	defer span.End()

	path := fmt.Sprintf("%s?user_id=eq.%s&limit=1", tableSettings, url.QueryEscape(userID))
	var s *domain.UserSettings
	err := c.execute(ctx, "supabase/settings", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		s, err = decodeFirst[domain.UserSettings](body)
		return err
	})
	return s, err
}

func (c *Client) UpsertSettings(ctx context.Context, s *domain.UserSettings) (*domain.UserSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSettings")
	defer span.End()

	data := map[string]any{
		"user_id":             s.UserID,
		"view_mode":           s.ViewMode,
		"locale":              s.Locale,
		"email_notifications": s.EmailNotifications,
		"updated_at":          time.Now().UTC(),
	}
	if s.SelectedTenantID != "" {
		data["selected_tenant_id"] = s.SelectedTenantID
	} else {
		data["selected_tenant_id"] = nil
	}

	var saved *domain.UserSettings
	err := c.execute(ctx, "supabase/settings", func() error {
		body, err := c.doUpsert(ctx, tableSettings+"?on_conflict=user_id", data)
		if err != nil {
			return err
		}
		saved, err = decodeFirst[domain.UserSettings](body)
		return err
	})
	return saved, err
}

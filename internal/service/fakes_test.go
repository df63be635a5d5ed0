package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/secretbox"

	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeTenantStore struct {
	mu      sync.Mutex
	tenants map[string]*domain.Tenant
	seq     int
	filter  domain.TenantFilter
}

func newFakeTenantStore(tenants ...domain.Tenant) *fakeTenantStore {
	s := &fakeTenantStore{tenants: map[string]*domain.Tenant{}}
	for i := range tenants {
		t := tenants[i]
		s.tenants[t.ID] = &t
	}
	return s
}

func (s *fakeTenantStore) ListTenants(_ context.Context, f domain.TenantFilter) ([]domain.Tenant, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	var out []domain.Tenant
	for _, t := range s.tenants {
		if t.DeletedAt != nil || (f.PartnerID != "" && t.PartnerID != f.PartnerID) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (s *fakeTenantStore) GetTenant(_ context.Context, id string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok || t.DeletedAt != nil {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTenantStore) GetTenantByCNPJ(_ context.Context, cnpj string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.CNPJ == cnpj && t.DeletedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeTenantStore) CreateTenant(_ context.Context, t *domain.Tenant) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	cp := *t
	cp.ID = fmt.Sprintf("tenant-%d", s.seq)
	s.tenants[cp.ID] = &cp
	return &cp, nil
}

func (s *fakeTenantStore) UpdateTenant(_ context.Context, id string, updates map[string]any) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, nil
	}
	if v, ok := updates["name"].(string); ok {
		t.Name = v
	}
	if v, ok := updates["cnpj"].(string); ok {
		t.CNPJ = v
	}
	if v, ok := updates["status"].(domain.TenantStatus); ok {
		t.Status = v
	}
	if v, ok := updates["plan"].(domain.TenantPlan); ok {
		t.Plan = v
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTenantStore) SoftDeleteTenant(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		t.DeletedAt = &at
	}
	return nil
}

func (s *fakeTenantStore) SetConnectionFlag(_ context.Context, id string, p domain.Platform, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil
	}
	if p == domain.PlatformContaAzul {
		t.ContaAzulConnected = connected
	} else {
		t.OlistConnected = connected
	}
	return nil
}

type credRecord struct {
	cred    domain.TenantCredential
	secrets domain.CredentialSecrets
}

type fakeCredentialStore struct {
	mu      sync.Mutex
	creds   map[string]*credRecord
	tenants *fakeTenantStore
	seq     int
	upserts int

	upsertErr error
}

func newFakeCredentialStore(tenants *fakeTenantStore) *fakeCredentialStore {
	return &fakeCredentialStore{creds: map[string]*credRecord{}, tenants: tenants}
}

func (s *fakeCredentialStore) put(c domain.TenantCredential, secrets domain.CredentialSecrets) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.HasTokens = secrets.AccessTokenEnc != ""
	s.creds[c.ID] = &credRecord{cred: c, secrets: secrets}
}

func (s *fakeCredentialStore) ListCredentials(_ context.Context, tenantID string) ([]domain.TenantCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TenantCredential
	for _, r := range s.creds {
		if r.cred.TenantID == tenantID {
			out = append(out, r.cred)
		}
	}
	return out, nil
}

func (s *fakeCredentialStore) GetCredential(_ context.Context, id string) (*domain.TenantCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.creds[id]
	if !ok {
		return nil, nil
	}
	cp := r.cred
	return &cp, nil
}

func (s *fakeCredentialStore) FindCredential(_ context.Context, tenantID string, p domain.Platform) (*domain.TenantCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.creds {
		if r.cred.TenantID == tenantID && r.cred.Platform == p {
			cp := r.cred
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeCredentialStore) GetCredentialSecrets(_ context.Context, id string) (*domain.CredentialSecrets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.creds[id]
	if !ok {
		return nil, nil
	}
	cp := r.secrets
	return &cp, nil
}

func (s *fakeCredentialStore) CreateCredential(_ context.Context, c *domain.TenantCredential) (*domain.TenantCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	cp := *c
	cp.ID = fmt.Sprintf("cred-%d", s.seq)
	s.creds[cp.ID] = &credRecord{cred: cp}
	return &cp, nil
}

func (s *fakeCredentialStore) UpsertSealedTokens(ctx context.Context, set *domain.SealedTokenSet) error {
	s.mu.Lock()
	if s.upsertErr != nil {
		s.mu.Unlock()
		return s.upsertErr
	}
	r, ok := s.creds[set.CredentialID]
	if !ok {
		r = &credRecord{cred: domain.TenantCredential{ID: set.CredentialID, TenantID: set.TenantID, Platform: set.Platform}}
		s.creds[set.CredentialID] = r
	}
	now := time.Now()
	r.secrets = domain.CredentialSecrets{AccessTokenEnc: set.AccessTokenEnc, RefreshTokenEnc: set.RefreshTokenEnc}
	r.cred.Active = true
	r.cred.HasTokens = true
	r.cred.Scope = set.Scope
	r.cred.ExpiresAt = set.ExpiresAt
	r.cred.LastRefreshAt = &now
	s.upserts++
	s.mu.Unlock()
	return s.tenants.SetConnectionFlag(ctx, set.TenantID, set.Platform, true)
}

func (s *fakeCredentialStore) DeactivateCredential(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.creds[id]; ok {
		r.cred.Active = false
		r.cred.RevokedAt = &at
		r.cred.HasTokens = false
		r.secrets = domain.CredentialSecrets{}
	}
	return nil
}

func (s *fakeCredentialStore) DeleteCredential(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, id)
	return nil
}

func (s *fakeCredentialStore) ListExpiringCredentials(_ context.Context, p domain.Platform, before time.Time) ([]domain.TenantCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TenantCredential
	for _, r := range s.creds {
		if r.cred.Platform == p && r.cred.Active && r.cred.ExpiresAt != nil && r.cred.ExpiresAt.Before(before) {
			out = append(out, r.cred)
		}
	}
	return out, nil
}

type fakeRuleStore struct {
	mu    sync.Mutex
	rules map[string]*domain.MappingRule
	seq   int
}

func newFakeRuleStore(rules ...domain.MappingRule) *fakeRuleStore {
	s := &fakeRuleStore{rules: map[string]*domain.MappingRule{}}
	for i := range rules {
		r := rules[i]
		s.rules[r.ID] = &r
	}
	return s
}

func (s *fakeRuleStore) ListRules(_ context.Context, tenantID string, activeOnly bool) ([]domain.MappingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MappingRule
	for _, r := range s.rules {
		if r.TenantID == tenantID && (!activeOnly || r.Active) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *fakeRuleStore) GetRule(_ context.Context, id string) (*domain.MappingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRuleStore) CreateRule(_ context.Context, r *domain.MappingRule) (*domain.MappingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	cp := *r
	cp.ID = fmt.Sprintf("rule-%d", s.seq)
	s.rules[cp.ID] = &cp
	return &cp, nil
}

func (s *fakeRuleStore) UpdateRule(_ context.Context, id string, updates map[string]any) (*domain.MappingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	if v, ok := updates["priority"].(int); ok {
		r.Priority = v
	}
	if v, ok := updates["active"].(bool); ok {
		r.Active = v
	}
	if v, ok := updates["condition_value"].(string); ok {
		r.ConditionValue = v
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRuleStore) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.UserProfile
	gets  int
}

func newFakeUserStore(users ...domain.UserProfile) *fakeUserStore {
	s := &fakeUserStore{users: map[string]*domain.UserProfile{}}
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	return s
}

func (s *fakeUserStore) GetUser(_ context.Context, id string) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) ListUsers(_ context.Context, _, _ int) ([]domain.UserProfile, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserProfile
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (s *fakeUserStore) CreateUser(_ context.Context, u *domain.UserProfile) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[cp.ID] = &cp
	return &cp, nil
}

func (s *fakeUserStore) UpdateUser(_ context.Context, id string, updates map[string]any) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	if v, ok := updates["name"].(string); ok {
		u.Name = v
	}
	if v, ok := updates["role"].(domain.Role); ok {
		u.Role = v
	}
	if v, ok := updates["active"].(bool); ok {
		u.Active = v
	}
	cp := *u
	return &cp, nil
}

type fakeSettingsStore struct {
	saved map[string]*domain.UserSettings
}

func (s *fakeSettingsStore) GetSettings(_ context.Context, userID string) (*domain.UserSettings, error) {
	return s.saved[userID], nil
}

func (s *fakeSettingsStore) UpsertSettings(_ context.Context, in *domain.UserSettings) (*domain.UserSettings, error) {
	if s.saved == nil {
		s.saved = map[string]*domain.UserSettings{}
	}
	cp := *in
	cp.UpdatedAt = time.Now()
	s.saved[in.UserID] = &cp
	return &cp, nil
}

type fakeExchanger struct {
	mu          sync.Mutex
	tokens      *domain.TokenSet
	err         error
	codes       []string
	refreshWith []string
}

func (e *fakeExchanger) Exchange(_ context.Context, code, _ string) (*domain.TokenSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
	if e.err != nil {
		return nil, e.err
	}
	cp := *e.tokens
	return &cp, nil
}

func (e *fakeExchanger) Refresh(_ context.Context, refreshToken string) (*domain.TokenSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshWith = append(e.refreshWith, refreshToken)
	if e.err != nil {
		return nil, e.err
	}
	cp := *e.tokens
	return &cp, nil
}

// --- Fixtures ---

const testMasterKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

var (
	adminUser = domain.UserProfile{ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin, Active: true}
	partnerA  = domain.UserProfile{ID: "partner-a", Name: "Parceiro A", Role: domain.RolePartner, Active: true}
	partnerB  = domain.UserProfile{ID: "partner-b", Name: "Parceiro B", Role: domain.RolePartner, Active: true}
	tenantOfA = domain.Tenant{ID: "t-a", PartnerID: "partner-a", Name: "Loja A", CNPJ: "11222333000181", Status: domain.TenantActive, Plan: domain.PlanPro}
	tenantOfB = domain.Tenant{ID: "t-b", PartnerID: "partner-b", Name: "Loja B", CNPJ: "11444777000161", Status: domain.TenantActive, Plan: domain.PlanBasic}
	validCNPJ = "45.723.174/0001-10"
)

func newSealer(t *testing.T) *secretbox.Box {
	t.Helper()
	box, err := secretbox.New(testMasterKey)
	require.NoError(t, err)
	return box
}

func ptr[T any](v T) *T { return &v }

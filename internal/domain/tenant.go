package domain

import "time"

// ============================================================
// Tenants
// ============================================================

// TenantStatus is the lifecycle status of a tenant.
type TenantStatus string

const (
	TenantActive   TenantStatus = "ACTIVE"
	TenantInactive TenantStatus = "INACTIVE"
)

// Valid reports whether s is a known status.
func (s TenantStatus) Valid() bool {
	return s == TenantActive || s == TenantInactive
}

// TenantPlan is the commercial plan of a tenant.
type TenantPlan string

const (
	PlanBasic      TenantPlan = "BASIC"
	PlanPro        TenantPlan = "PRO"
	PlanEnterprise TenantPlan = "ENTERPRISE"
)

// Valid reports whether p is a known plan.
func (p TenantPlan) Valid() bool {
	switch p {
	case PlanBasic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Tenant is a partner's client company managed within the console.
type Tenant struct {
	ID                 string       `json:"id"`
	PartnerID          string       `json:"partner_id"`
	Name               string       `json:"name"`
	CNPJ               string       `json:"cnpj"`
	Status             TenantStatus `json:"status"`
	Plan               TenantPlan   `json:"plan"`
	ContaAzulConnected bool         `json:"conta_azul_connected"`
	OlistConnected     bool         `json:"olist_connected"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	DeletedAt          *time.Time   `json:"deleted_at,omitempty"`
}

// TenantFilter narrows tenant listings.
type TenantFilter struct {
	PartnerID string // empty = every partner (admin view)
	Status    TenantStatus
	Search    string // matches name or cnpj
	Page      int
	PageSize  int
}

// CreateTenantRequest is the body for POST /v1/tenants.
type CreateTenantRequest struct {
	Name      string     `json:"name" validate:"required,min=2,max=120"`
	CNPJ      string     `json:"cnpj" validate:"required"`
	Plan      TenantPlan `json:"plan" validate:"omitempty,oneof=BASIC PRO ENTERPRISE"`
	PartnerID string     `json:"partner_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateTenantRequest is the body for PUT /v1/tenants/{tenantId}.
// Nil fields are left untouched.
type UpdateTenantRequest struct {
	Name   *string       `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	CNPJ   *string       `json:"cnpj,omitempty"`
	Status *TenantStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Plan   *TenantPlan   `json:"plan,omitempty" validate:"omitempty,oneof=BASIC PRO ENTERPRISE"`
}

// TenantDashboard aggregates what the tenant detail screen shows.
type TenantDashboard struct {
	Tenant           *Tenant            `json:"tenant"`
	Credentials      []TenantCredential `json:"credentials"`
	ActiveRules      int                `json:"active_rules"`
	TotalRules       int                `json:"total_rules"`
	ContaAzulExpires *time.Time         `json:"conta_azul_expires_at,omitempty"`
}

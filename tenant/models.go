package tenant

import "time"

// Tenant is the domain representation of a client organization.
// It mirrors the tenants table and carries no JSON annotations so it
// can be reused by different presentation layers.
type Tenant struct {
	ID         string
	Name       string
	SecretHash string
	CreatedAt  time.Time
}

// AuthenticateRequest contains the credential pair presented by a tenant.
type AuthenticateRequest struct {
	Name   string `json:"tenant_name"`
	Secret string `json:"shared_secret"`
}

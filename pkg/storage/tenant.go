package storage

import "context"

type tenantContextKey struct{}

// SetTenant returns a context scoped to the given tenant. Stores read
// it to stamp new usage records and to filter listings.
func SetTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// GetTenant reports the tenant the context is scoped to. Empty means a
// single-tenant deployment: records are unscoped and listings see
// everything.
func GetTenant(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantContextKey{}).(string)
	return tenant
}

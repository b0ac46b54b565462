package authgate

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// StaticResolver is a SecretResolver over a fixed tenant->secret map, loaded
// once at startup.
type StaticResolver struct {
	secrets map[string]string
}

// Secret returns the shared secret for a tenant.
func (r *StaticResolver) Secret(tenant string) (string, bool) {
	s, ok := r.secrets[tenant]
	return s, ok
}

// Tenants returns the known tenant ids.
func (r *StaticResolver) Tenants() []string {
	out := make([]string, 0, len(r.secrets))
	for t := range r.secrets {
		out = append(out, t)
	}
	return out
}

// SingleTenant creates a resolver for one tenant/secret pair (the dev-mode
// TALLY_TENANT/TALLY_SECRET fallback).
func SingleTenant(tenant, secret string) *StaticResolver {
	return &StaticResolver{secrets: map[string]string{tenant: secret}}
}

// tenantEntry is one [tenants.<id>] table in the tenants file.
type tenantEntry struct {
	Secret      string `toml:"secret"`
	DisplayName string `toml:"displayName"`
}

// tenantsFile is the TOML shape of the tenants file:
//
//	[tenants.acme]
//	secret = "..."
//	displayName = "Acme Corp"
type tenantsFile struct {
	Tenants map[string]tenantEntry `toml:"tenants"`
}

// LoadTenantsFile reads a TOML tenants file into a StaticResolver. Every
// tenant must carry a non-empty secret.
func LoadTenantsFile(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}

	var tf tenantsFile
	if err := toml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse tenants file: %w", err)
	}
	if len(tf.Tenants) == 0 {
		return nil, fmt.Errorf("tenants file %s defines no tenants", path)
	}

	secrets := make(map[string]string, len(tf.Tenants))
	for id, entry := range tf.Tenants {
		if entry.Secret == "" {
			return nil, fmt.Errorf("tenant %q has no secret", id)
		}
		secrets[id] = entry.Secret
	}
	return &StaticResolver{secrets: secrets}, nil
}

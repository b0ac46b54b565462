// Package authgate verifies request signatures and tenant scoping before any
// other ledger component runs.
//
// The authoritative scheme is v1: the caller sends X-Tally-Tenant and
// X-Tally-Signature: v1=<hex>, where <hex> is the SHA-256 digest of the
// tenant's shared secret concatenated with the raw request body. An older
// bearer+signature header pair is recognized only to reject it with a
// deprecation warning in the audit log.
package authgate

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Request headers.
const (
	TenantHeader    = "X-Tally-Tenant"
	SignatureHeader = "X-Tally-Signature"
)

// ErrAuthFailed is returned for any signature, tenant, or scheme mismatch.
// The reason is logged for audit; callers only see the sentinel.
var ErrAuthFailed = errors.New("auth failed")

// SecretResolver maps a tenant id to its shared secret. Implementations are
// bound at startup; there is no process-global secret state.
type SecretResolver interface {
	Secret(tenant string) (string, bool)
}

// Gate verifies request authentication against an injected SecretResolver.
type Gate struct {
	secrets SecretResolver
	logger  *slog.Logger
}

// New creates a gate over the given resolver.
func New(secrets SecretResolver, logger *slog.Logger) *Gate {
	return &Gate{secrets: secrets, logger: logger}
}

// Signature computes the v1 signature for a request body:
// "v1=" + hex(sha256(secret || body)). Clients use this to sign requests.
func Signature(secret string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(body)
	return "v1=" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks the request's tenant and signature headers against the raw
// body bytes. It returns the verified tenant id, or ErrAuthFailed. Every
// rejection is logged with the reason for audit; no other side effect occurs.
func (g *Gate) Verify(r *http.Request, body []byte) (string, error) {
	tenant := r.Header.Get(TenantHeader)
	sig := r.Header.Get(SignatureHeader)

	// The legacy bearer+unversioned-signature pair is deprecated: detect it
	// so operators see why old clients stopped working, then reject.
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") && !strings.Contains(sig, "=") {
		return "", g.reject(r, tenant, "deprecated bearer+signature scheme")
	}

	if tenant == "" {
		return "", g.reject(r, tenant, "missing tenant header")
	}
	if sig == "" {
		return "", g.reject(r, tenant, "missing signature header")
	}

	version, digest, ok := strings.Cut(sig, "=")
	if !ok || version != "v1" {
		return "", g.reject(r, tenant, fmt.Sprintf("unknown signature scheme %q", version))
	}

	secret, ok := g.secrets.Secret(tenant)
	if !ok {
		return "", g.reject(r, tenant, "unknown tenant")
	}

	want := strings.TrimPrefix(Signature(secret, body), "v1=")
	if subtle.ConstantTimeCompare([]byte(digest), []byte(want)) != 1 {
		return "", g.reject(r, tenant, "signature mismatch")
	}

	return tenant, nil
}

func (g *Gate) reject(r *http.Request, tenant, reason string) error {
	g.logger.Warn("auth rejected",
		"tenant", tenant,
		"remote", r.RemoteAddr,
		"path", r.URL.Path,
		"reason", reason)
	return ErrAuthFailed
}

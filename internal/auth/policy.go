package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the required role for the request. Staff routes
// mutate operational state; exports and audit detail are admin-only reads.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path

	switch {
	case strings.HasPrefix(path, "/api/v1/staff/"):
		return RoleStaff, true
	case strings.HasPrefix(path, "/api/v1/exports/"):
		return RoleAdmin, true
	case path == "/api/v1/analytics/audit" || path == "/api/v1/analytics/audit/stats":
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/analytics/"):
		return RoleStudent, true
	case strings.HasPrefix(path, "/api/v1/ai/"):
		return RoleStudent, true
	case strings.HasPrefix(path, "/api/v1/system/"):
		return RoleStudent, true
	case path == "/api/v1/alerts/stream" || path == "/ws":
		return RoleStudent, true
	default:
		return "", false
	}
}

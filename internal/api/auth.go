package api

import (
	"net/http"
	"strings"

	"transpath/internal/auth"
)

// getPrincipal extracts the caller from a bearer token, falling back to
// dev headers when no token is presented.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if p, err := s.Auth.Verify(tok); err == nil {
			return p
		}
		return auth.Principal{}
	}
	subject := r.Header.Get("X-Subject")
	role := strings.ToLower(r.Header.Get("X-Role"))
	if subject == "" {
		subject = "dev"
	}
	if role == "" {
		role = "modeler"
	}
	return auth.Principal{Subject: subject, Role: role}
}

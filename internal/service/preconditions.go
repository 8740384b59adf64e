package service

import (
	"strings"

	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

// preconditions collects failed registration checks. With override set, failures
// become warnings instead of errors.
type preconditions struct {
	override bool
	first    *appErrors.Error
	failures []string
	warnings []string
}

func newPreconditions(override bool) *preconditions {
	return &preconditions{override: override}
}

func (p *preconditions) require(ok bool, kind *appErrors.Error, msg string) {
	if ok {
		return
	}
	if p.override {
		p.warnings = append(p.warnings, msg+" (overridden by administrator)")
		return
	}
	if p.first == nil {
		p.first = kind
	}
	p.failures = append(p.failures, msg)
}

func (p *preconditions) err() error {
	if len(p.failures) == 0 {
		return nil
	}
	return appErrors.Clone(p.first, strings.Join(p.failures, "; "))
}

func isPrivileged(claims *models.JWTClaims) bool {
	return claims != nil && claims.Role.Valid()
}

// Package dns derives the public hostnames of environment services.
package dns

import (
	"fmt"
	"strings"
)

// Resolver maps an environment service to its hostname under a base domain.
type Resolver struct {
	domainName string
}

// NewResolver creates a resolver for the given base domain, e.g.
// "workspaces.example.com".
func NewResolver(domainName string) *Resolver {
	return &Resolver{domainName: strings.Trim(strings.TrimSpace(domainName), ".")}
}

// Hostname returns "<service>-<id>.<domain>".
func (r *Resolver) Hostname(service string, id string) (string, error) {
	if r.domainName == "" {
		return "", fmt.Errorf("domain name is not configured")
	}
	if service == "" || id == "" {
		return "", fmt.Errorf("service and environment id are required")
	}
	return fmt.Sprintf("%s-%s.%s", service, id, r.domainName), nil
}

// Package rstudio produces pre-authenticated sign-in URLs for RStudio
// workspaces by encrypting instance credentials with the server's public key.
package rstudio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

const serviceName = "rstudio"

var (
	// ErrNetwork marks failures reaching a handshake dependency.
	ErrNetwork = errors.New("rstudio handshake network failure")
	// ErrProtocol marks key material that cannot be parsed or used.
	ErrProtocol = errors.New("rstudio handshake protocol failure")
)

// SecretProvider supplies the shared secret instance passwords derive from.
type SecretProvider interface {
	GetSecret(ctx context.Context) (string, error)
}

// HostnameResolver maps an environment service to its hostname.
type HostnameResolver interface {
	Hostname(service string, id string) (string, error)
}

// PublicKeyFetcher retrieves the RSA key published at a URL.
type PublicKeyFetcher interface {
	Fetch(ctx context.Context, publicKeyURL string) (KeyMaterial, error)
}

// Handshake builds sign-in URLs. It holds no per-request state and is safe
// for concurrent use.
type Handshake struct {
	resolver HostnameResolver
	secrets  SecretProvider
	keys     PublicKeyFetcher
}

func NewHandshake(resolver HostnameResolver, secrets SecretProvider, keys PublicKeyFetcher) *Handshake {
	return &Handshake{
		resolver: resolver,
		secrets:  secrets,
		keys:     keys,
	}
}

// PublicKeyURL is the RStudio endpoint serving "<exponent>:<modulus>".
func PublicKeyURL(hostname string) string {
	return fmt.Sprintf("https://%s/auth-public-key", hostname)
}

// SignInEndpoint is the RStudio endpoint that accepts encrypted credentials.
func SignInEndpoint(hostname string) string {
	return fmt.Sprintf("https://%s/auth-do-sign-in", hostname)
}

// SignInURL appends the encoded ciphertext to the sign-in endpoint.
func SignInURL(signInEndpoint string, ciphertext string) string {
	return signInEndpoint + "?" + url.Values{"v": {ciphertext}}.Encode()
}

// AuthorizedURL runs the handshake for one environment. Every step is
// required; the first failure aborts without a URL.
func (h *Handshake) AuthorizedURL(ctx context.Context, id string, instanceID string) (string, error) {
	if instanceID == "" {
		return "", fmt.Errorf("environment %q has no workspace instance id", id)
	}

	hostname, err := h.resolver.Hostname(serviceName, id)
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve rstudio hostname: %w", ErrNetwork, err)
	}
	publicKeyURL := PublicKeyURL(hostname)
	signInEndpoint := SignInEndpoint(hostname)

	secret, err := h.secrets.GetSecret(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to get shared secret: %w", ErrNetwork, err)
	}
	blob := CredentialBlob(Username, Password(instanceID, secret))

	key, err := h.keys.Fetch(ctx, publicKeyURL)
	if err != nil {
		if errors.Is(err, ErrProtocol) || errors.Is(err, ErrNetwork) {
			return "", err
		}
		return "", fmt.Errorf("%w: failed to fetch public key: %w", ErrNetwork, err)
	}

	ciphertext, err := Encrypt(blob, key)
	if err != nil {
		return "", err
	}

	return SignInURL(signInEndpoint, ciphertext), nil
}

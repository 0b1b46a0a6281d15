package rstudio

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// maxKeyResponseBytes caps the auth-public-key body; real keys are well under 2 KiB.
const maxKeyResponseBytes = 64 << 10

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// KeyMaterial is the RSA public key published by an RStudio server.
// It is scoped to a single request and never cached.
type KeyMaterial struct {
	Exponent *big.Int
	Modulus  *big.Int
}

// ParseKeyMaterial parses an auth-public-key body of the form
// "<exponent>:<modulus>", both hex encoded. Only the first colon separates the
// two values.
func ParseKeyMaterial(body string) (KeyMaterial, error) {
	parts := strings.SplitN(strings.TrimSpace(body), ":", 2)
	if len(parts) != 2 {
		return KeyMaterial{}, fmt.Errorf("%w: public key response has no exponent/modulus separator", ErrProtocol)
	}
	if parts[0] == "" || parts[1] == "" {
		return KeyMaterial{}, fmt.Errorf("%w: public key response has an empty exponent or modulus", ErrProtocol)
	}

	exponent, ok := new(big.Int).SetString(parts[0], 16)
	if !ok {
		return KeyMaterial{}, fmt.Errorf("%w: public key exponent is not hex", ErrProtocol)
	}
	modulus, ok := new(big.Int).SetString(parts[1], 16)
	if !ok {
		return KeyMaterial{}, fmt.Errorf("%w: public key modulus is not hex", ErrProtocol)
	}
	if modulus.Sign() <= 0 {
		return KeyMaterial{}, fmt.Errorf("%w: public key modulus must be positive", ErrProtocol)
	}

	return KeyMaterial{Exponent: exponent, Modulus: modulus}, nil
}

// KeyFetcher retrieves public keys from RStudio's unauthenticated key endpoint.
type KeyFetcher struct {
	client httpClient
}

// NewKeyFetcher creates a key fetcher with a bounded request timeout.
func NewKeyFetcher() *KeyFetcher {
	return newKeyFetcher(&http.Client{Timeout: 15 * time.Second})
}

// NewKeyFetcherWithClient creates a key fetcher that uses client, e.g. one
// trusting a private CA.
func NewKeyFetcherWithClient(client *http.Client) *KeyFetcher {
	return newKeyFetcher(client)
}

func newKeyFetcher(client httpClient) *KeyFetcher {
	return &KeyFetcher{client: client}
}

func (f *KeyFetcher) Fetch(ctx context.Context, publicKeyURL string) (KeyMaterial, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, publicKeyURL, nil)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to build public key request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("%w: failed to request public key: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyResponseBytes))
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("%w: failed to read public key response: %w", ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		return KeyMaterial{}, fmt.Errorf("%w: public key endpoint returned HTTP %d", ErrNetwork, resp.StatusCode)
	}

	return ParseKeyMaterial(string(body))
}

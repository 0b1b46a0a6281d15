package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// DefaultSecretCacheTTL bounds how long a shared secret is served from memory.
const DefaultSecretCacheTTL = 15 * time.Minute

// secretCache holds a single secret value until it expires.
type secretCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	value     string
	expiresAt time.Time
}

func (c *secretCache) get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

func (c *secretCache) set(value string) {
	c.mu.Lock()
	c.value = value
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()
}

type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMSecretProvider reads the shared secret from an SSM SecureString parameter.
type SSMSecretProvider struct {
	client ssmAPI
	name   string
	cache  *secretCache
}

// NewSSMSecretProvider creates a provider for the named parameter.
func NewSSMSecretProvider(cfg awsv2.Config, name string, ttl time.Duration) *SSMSecretProvider {
	return newSSMSecretProvider(ssm.NewFromConfig(cfg), name, ttl)
}

func newSSMSecretProvider(client ssmAPI, name string, ttl time.Duration) *SSMSecretProvider {
	return &SSMSecretProvider{
		client: client,
		name:   name,
		cache:  &secretCache{ttl: ttl, now: time.Now},
	}
}

// GetSecret returns the decrypted parameter value.
func (p *SSMSecretProvider) GetSecret(ctx context.Context) (string, error) {
	if p.name == "" {
		return "", fmt.Errorf("secret parameter name is required")
	}
	if value, ok := p.cache.get(); ok {
		return value, nil
	}

	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           awsv2.String(p.name),
		WithDecryption: awsv2.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %q: %w", p.name, err)
	}
	if out.Parameter == nil || awsv2.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %q has no value", p.name)
	}

	value := awsv2.ToString(out.Parameter.Value)
	p.cache.set(value)
	return value, nil
}

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSecretProvider reads the shared secret from Secrets Manager.
// Only string secrets are supported.
type SecretsManagerSecretProvider struct {
	client   secretsManagerAPI
	secretID string
	cache    *secretCache
}

// NewSecretsManagerSecretProvider creates a provider for the given secret ID or ARN.
func NewSecretsManagerSecretProvider(cfg awsv2.Config, secretID string, ttl time.Duration) *SecretsManagerSecretProvider {
	return newSecretsManagerSecretProvider(secretsmanager.NewFromConfig(cfg), secretID, ttl)
}

func newSecretsManagerSecretProvider(client secretsManagerAPI, secretID string, ttl time.Duration) *SecretsManagerSecretProvider {
	return &SecretsManagerSecretProvider{
		client:   client,
		secretID: secretID,
		cache:    &secretCache{ttl: ttl, now: time.Now},
	}
}

func (p *SecretsManagerSecretProvider) GetSecret(ctx context.Context) (string, error) {
	if p.secretID == "" {
		return "", fmt.Errorf("secret ID is required")
	}
	if value, ok := p.cache.get(); ok {
		return value, nil
	}

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: awsv2.String(p.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", p.secretID, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q is not a string type (binary secrets not supported)", p.secretID)
	}
	if *out.SecretString == "" {
		return "", fmt.Errorf("secret %q has no value", p.secretID)
	}

	value := *out.SecretString
	p.cache.set(value)
	return value, nil
}

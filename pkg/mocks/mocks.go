package mocks

import (
	"context"
	"fmt"
	"sync"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"

	"github.com/eculver/environment-url/pkg/audit"
	awslib "github.com/eculver/environment-url/pkg/aws"
	"github.com/eculver/environment-url/pkg/environment"
)

type Service struct {
	GetCallerIdentityFunc func(ctx context.Context, profile string) (awslib.Identity, error)
	AssumeRoleFunc        func(ctx context.Context, profile string, req awslib.RoleRequest) (awslib.Credentials, error)
	LoadConfigFunc        func(ctx context.Context, profile string) (awsv2.Config, error)

	GetCallerIdentityCalls int
	AssumeRoleCalls        int
	LoadConfigCalls        int
}

func (m *Service) LoadConfig(ctx context.Context, profile string) (awsv2.Config, error) {
	m.LoadConfigCalls++
	if m.LoadConfigFunc == nil {
		return awsv2.Config{}, fmt.Errorf("LoadConfigFunc is not set")
	}
	return m.LoadConfigFunc(ctx, profile)
}

func (m *Service) GetCallerIdentity(ctx context.Context, profile string) (awslib.Identity, error) {
	m.GetCallerIdentityCalls++
	if m.GetCallerIdentityFunc == nil {
		return awslib.Identity{}, fmt.Errorf("GetCallerIdentityFunc is not set")
	}
	return m.GetCallerIdentityFunc(ctx, profile)
}

func (m *Service) AssumeRole(ctx context.Context, profile string, req awslib.RoleRequest) (awslib.Credentials, error) {
	m.AssumeRoleCalls++
	if m.AssumeRoleFunc == nil {
		return awslib.Credentials{}, fmt.Errorf("AssumeRoleFunc is not set")
	}
	return m.AssumeRoleFunc(ctx, profile, req)
}

type Lookup struct {
	MustFindFunc                  func(ctx context.Context, rc environment.RequestContext, id string) (environment.Environment, error)
	CredentialsForEnvironmentFunc func(ctx context.Context, rc environment.RequestContext, id string) (awslib.Credentials, error)

	MustFindCalls                  int
	CredentialsForEnvironmentCalls int
}

func (m *Lookup) MustFind(ctx context.Context, rc environment.RequestContext, id string) (environment.Environment, error) {
	m.MustFindCalls++
	if m.MustFindFunc == nil {
		return environment.Environment{}, fmt.Errorf("MustFindFunc is not set")
	}
	return m.MustFindFunc(ctx, rc, id)
}

func (m *Lookup) CredentialsForEnvironment(ctx context.Context, rc environment.RequestContext, id string) (awslib.Credentials, error) {
	m.CredentialsForEnvironmentCalls++
	if m.CredentialsForEnvironmentFunc == nil {
		return awslib.Credentials{}, fmt.Errorf("CredentialsForEnvironmentFunc is not set")
	}
	return m.CredentialsForEnvironmentFunc(ctx, rc, id)
}

type Handshake struct {
	AuthorizedURLFunc func(ctx context.Context, id string, instanceID string) (string, error)

	AuthorizedURLCalls int
	LastInstanceID     string
}

func (m *Handshake) AuthorizedURL(ctx context.Context, id string, instanceID string) (string, error) {
	m.AuthorizedURLCalls++
	m.LastInstanceID = instanceID
	if m.AuthorizedURLFunc == nil {
		return "", fmt.Errorf("AuthorizedURLFunc is not set")
	}
	return m.AuthorizedURLFunc(ctx, id, instanceID)
}

type NotebookPresigner struct {
	PresignedNotebookURLFunc func(ctx context.Context, creds awslib.Credentials, region string, notebookInstanceName string) (string, error)

	PresignedNotebookURLCalls int
	LastCredentials           awslib.Credentials
	LastNotebookInstanceName  string
}

func (m *NotebookPresigner) PresignedNotebookURL(ctx context.Context, creds awslib.Credentials, region string, notebookInstanceName string) (string, error) {
	m.PresignedNotebookURLCalls++
	m.LastCredentials = creds
	m.LastNotebookInstanceName = notebookInstanceName
	if m.PresignedNotebookURLFunc == nil {
		return "", fmt.Errorf("PresignedNotebookURLFunc is not set")
	}
	return m.PresignedNotebookURLFunc(ctx, creds, region, notebookInstanceName)
}

// Emitter records audit events synchronously.
type Emitter struct {
	mu     sync.Mutex
	Events []audit.Event
}

func (m *Emitter) WriteAndForget(ctx context.Context, rc environment.RequestContext, event audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

func (m *Emitter) Recorded() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.Events...)
}

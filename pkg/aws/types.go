package aws

import (
	"context"
	"errors"
)

// ErrProvider marks failures returned by an AWS API on behalf of an environment.
var ErrProvider = errors.New("provider API failure")

// Identity captures the principal that authenticated with STS.
type Identity struct {
	Arn string
}

// Credentials are temporary or long-lived AWS credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// RoleRequest describes a role to assume in an environment's account.
type RoleRequest struct {
	RoleARN         string
	ExternalID      string
	SessionName     string
	DurationSeconds int32
}

// Service handles identity and role operations against AWS APIs.
type Service interface {
	GetCallerIdentity(ctx context.Context, profile string) (Identity, error)
	AssumeRole(ctx context.Context, profile string, req RoleRequest) (Credentials, error)
}

// NotebookURLPresigner creates presigned SageMaker notebook URLs.
type NotebookURLPresigner interface {
	PresignedNotebookURL(ctx context.Context, creds Credentials, region string, notebookInstanceName string) (string, error)
}

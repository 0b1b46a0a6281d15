package environment

import (
	"context"
	"errors"

	awslib "github.com/eculver/environment-url/pkg/aws"
)

var (
	// ErrAccessDenied is returned when the caller may not access an environment.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound is returned when no environment exists for an id.
	ErrNotFound = errors.New("environment not found")
)

// Type identifies how an environment's console is reached.
type Type string

const (
	TypeRStudio   Type = "rstudio"
	TypeEMR       Type = "emr"
	TypeSageMaker Type = "sagemaker"
)

// ParseType maps a stored type tag onto a Type. The legacy "ec2-rstudio" tag
// is treated as rstudio; unknown tags are kept verbatim.
func ParseType(raw string) Type {
	if raw == "ec2-rstudio" {
		return TypeRStudio
	}
	return Type(raw)
}

// InstanceInfo describes how to reach the instance behind an environment.
// Only the fields relevant to Type are populated.
type InstanceInfo struct {
	Type                   Type
	Ec2WorkspaceInstanceID string
	JupyterURL             string
	NotebookInstanceName   string
}

// Environment is a provisioned workspace as seen by URL resolution.
type Environment struct {
	ID             string
	CreatedBy      string
	ProjectID      string
	AccountRoleARN string
	ExternalID     string
	Region         string
	InstanceInfo   InstanceInfo
}

// RequestContext identifies the caller of an operation.
type RequestContext struct {
	Principal string
	IsAdmin   bool
}

// Lookup finds environments on behalf of a caller, enforcing access control.
type Lookup interface {
	MustFind(ctx context.Context, rc RequestContext, id string) (Environment, error)
	CredentialsForEnvironment(ctx context.Context, rc RequestContext, id string) (awslib.Credentials, error)
}

// Package envurl resolves the authorized console URL for an environment.
package envurl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eculver/environment-url/pkg/audit"
	awslib "github.com/eculver/environment-url/pkg/aws"
	"github.com/eculver/environment-url/pkg/environment"
)

// Result is the URL handed back to the caller. An empty AuthorizedURL means
// no URL is available for the environment's type.
type Result struct {
	AuthorizedURL string `json:"AuthorizedUrl,omitempty"`
}

// RStudioHandshake produces pre-authenticated RStudio sign-in URLs.
type RStudioHandshake interface {
	AuthorizedURL(ctx context.Context, id string, instanceID string) (string, error)
}

// handler produces a URL for one environment type.
type handler interface {
	authorizedURL(ctx context.Context, rc environment.RequestContext, env environment.Environment) (Result, error)
	auditAction() string
}

// Service dispatches URL requests by environment type.
type Service struct {
	lookup environment.Lookup
	audit  audit.Emitter
	logger *zap.Logger

	rstudio   handler
	emr       handler
	sagemaker handler
}

// NewService wires a Service. A nil logger discards logs.
func NewService(lookup environment.Lookup, handshake RStudioHandshake, presigner awslib.NotebookURLPresigner, emitter audit.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		lookup:    lookup,
		audit:     emitter,
		logger:    logger,
		rstudio:   rstudioHandler{handshake: handshake},
		emr:       emrHandler{},
		sagemaker: sagemakerHandler{lookup: lookup, presigner: presigner},
	}
}

// GetURL returns the authorized URL for environment id. Lookup failures are
// returned unchanged before any other work. Otherwise one audit event is
// emitted whether or not a URL was produced.
func (s *Service) GetURL(ctx context.Context, rc environment.RequestContext, id string) (Result, error) {
	env, err := s.lookup.MustFind(ctx, rc, id)
	if err != nil {
		return Result{}, err
	}

	envType := env.InstanceInfo.Type
	log := s.logger.With(zap.String("environment", id), zap.String("type", string(envType)))

	var h handler
	switch envType {
	case environment.TypeRStudio:
		h = s.rstudio
	case environment.TypeEMR:
		h = s.emr
	case environment.TypeSageMaker:
		h = s.sagemaker
	default:
		// Unsupported types have no URL. This is not an error.
		log.Debug("no URL strategy for environment type")
		s.emit(ctx, rc, audit.ActionEnvironmentURLRequested, id)
		return Result{}, nil
	}

	result, err := h.authorizedURL(ctx, rc, env)
	s.emit(ctx, rc, h.auditAction(), id)
	if err != nil {
		log.Debug("failed to produce environment URL", zap.String("class", Classify(err)))
		return Result{}, err
	}

	log.Debug("produced environment URL")
	return result, nil
}

func (s *Service) emit(ctx context.Context, rc environment.RequestContext, action string, id string) {
	s.audit.WriteAndForget(ctx, rc, audit.Event{
		Action: action,
		Body:   map[string]string{"id": id},
	})
}

type rstudioHandler struct {
	handshake RStudioHandshake
}

func (h rstudioHandler) authorizedURL(ctx context.Context, rc environment.RequestContext, env environment.Environment) (Result, error) {
	u, err := h.handshake.AuthorizedURL(ctx, env.ID, env.InstanceInfo.Ec2WorkspaceInstanceID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build rstudio URL: %w", err)
	}
	return Result{AuthorizedURL: u}, nil
}

func (rstudioHandler) auditAction() string { return audit.ActionEnvironmentURLRequested }

type emrHandler struct{}

func (emrHandler) authorizedURL(ctx context.Context, rc environment.RequestContext, env environment.Environment) (Result, error) {
	return Result{AuthorizedURL: env.InstanceInfo.JupyterURL}, nil
}

func (emrHandler) auditAction() string { return audit.ActionEnvironmentURLRequested }

type sagemakerHandler struct {
	lookup    environment.Lookup
	presigner awslib.NotebookURLPresigner
}

func (h sagemakerHandler) authorizedURL(ctx context.Context, rc environment.RequestContext, env environment.Environment) (Result, error) {
	creds, err := h.lookup.CredentialsForEnvironment(ctx, rc, env.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get environment account credentials: %w", err)
	}

	u, err := h.presigner.PresignedNotebookURL(ctx, creds, env.Region, env.InstanceInfo.NotebookInstanceName)
	if err != nil {
		return Result{}, err
	}
	return Result{AuthorizedURL: u}, nil
}

func (sagemakerHandler) auditAction() string { return audit.ActionNotebookPresignedURLRequested }

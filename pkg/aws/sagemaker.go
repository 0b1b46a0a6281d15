package aws

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
)

// notebookViewSuffix opens the notebook in JupyterLab instead of classic Jupyter.
const notebookViewSuffix = "&view=lab"

type sagemakerAPI interface {
	CreatePresignedNotebookInstanceUrl(ctx context.Context, params *sagemaker.CreatePresignedNotebookInstanceUrlInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreatePresignedNotebookInstanceUrlOutput, error)
}

type sagemakerClientFactory interface {
	NewFromConfig(cfg awsv2.Config) sagemakerAPI
}

type defaultSageMakerClientFactory struct{}

func (defaultSageMakerClientFactory) NewFromConfig(cfg awsv2.Config) sagemakerAPI {
	return sagemaker.NewFromConfig(cfg)
}

// NotebookPresigner calls SageMaker with an environment account's credentials.
type NotebookPresigner struct {
	loader         configLoader
	factory        sagemakerClientFactory
	defaultRegion  string
	sessionSeconds int32
}

// NewNotebookPresigner creates a presigner. defaultRegion is used for
// environments that do not record a region. A sessionSeconds of zero leaves
// the session duration to SageMaker's default.
func NewNotebookPresigner(defaultRegion string, sessionSeconds int32) *NotebookPresigner {
	return newNotebookPresigner(defaultConfigLoader{}, defaultSageMakerClientFactory{}, defaultRegion, sessionSeconds)
}

func newNotebookPresigner(loader configLoader, factory sagemakerClientFactory, defaultRegion string, sessionSeconds int32) *NotebookPresigner {
	return &NotebookPresigner{
		loader:         loader,
		factory:        factory,
		defaultRegion:  defaultRegion,
		sessionSeconds: sessionSeconds,
	}
}

func (p *NotebookPresigner) PresignedNotebookURL(ctx context.Context, creds Credentials, region string, notebookInstanceName string) (string, error) {
	if notebookInstanceName == "" {
		return "", fmt.Errorf("notebook instance name is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		)),
	}
	if region == "" {
		region = p.defaultRegion
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := p.loader.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	input := &sagemaker.CreatePresignedNotebookInstanceUrlInput{
		NotebookInstanceName: awsv2.String(notebookInstanceName),
	}
	if p.sessionSeconds > 0 {
		input.SessionExpirationDurationInSeconds = awsv2.Int32(p.sessionSeconds)
	}

	out, err := p.factory.NewFromConfig(cfg).CreatePresignedNotebookInstanceUrl(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create presigned notebook URL: %w", ErrProvider, err)
	}

	authorizedURL := awsv2.ToString(out.AuthorizedUrl)
	if authorizedURL == "" {
		return "", fmt.Errorf("%w: SageMaker returned an empty notebook URL", ErrProvider)
	}

	return authorizedURL + notebookViewSuffix, nil
}

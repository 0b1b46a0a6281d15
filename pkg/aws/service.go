package aws

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const defaultRoleSessionName = "environment-url"

type configLoader interface {
	LoadDefaultConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (awsv2.Config, error)
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) LoadDefaultConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (awsv2.Config, error) {
	return config.LoadDefaultConfig(ctx, optFns...)
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

type stsClientFactory interface {
	NewFromConfig(cfg awsv2.Config) stsAPI
}

type defaultSTSClientFactory struct{}

func (defaultSTSClientFactory) NewFromConfig(cfg awsv2.Config) stsAPI {
	return sts.NewFromConfig(cfg)
}

// SDKService is the concrete implementation backed by AWS SDK v2.
type SDKService struct {
	loader     configLoader
	stsFactory stsClientFactory
	region     string
}

// NewService creates an AWS service implementation that uses AWS SDK v2.
// An empty region defers to the shared config and environment.
func NewService(region string) *SDKService {
	return newSDKService(defaultConfigLoader{}, defaultSTSClientFactory{}, region)
}

func newSDKService(loader configLoader, stsFactory stsClientFactory, region string) *SDKService {
	return &SDKService{
		loader:     loader,
		stsFactory: stsFactory,
		region:     region,
	}
}

// LoadConfig resolves the AWS configuration for a profile.
func (s *SDKService) LoadConfig(ctx context.Context, profile string) (awsv2.Config, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if s.region != "" {
		opts = append(opts, config.WithRegion(s.region))
	}

	cfg, err := s.loader.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awsv2.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func (s *SDKService) GetCallerIdentity(ctx context.Context, profile string) (Identity, error) {
	cfg, err := s.LoadConfig(ctx, profile)
	if err != nil {
		return Identity{}, err
	}

	out, err := s.stsFactory.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, err
	}

	return Identity{Arn: awsv2.ToString(out.Arn)}, nil
}

// AssumeRole returns temporary credentials for the role described by req.
func (s *SDKService) AssumeRole(ctx context.Context, profile string, req RoleRequest) (Credentials, error) {
	if req.RoleARN == "" {
		return Credentials{}, fmt.Errorf("role ARN is required")
	}

	cfg, err := s.LoadConfig(ctx, profile)
	if err != nil {
		return Credentials{}, err
	}

	sessionName := req.SessionName
	if sessionName == "" {
		sessionName = defaultRoleSessionName
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         awsv2.String(req.RoleARN),
		RoleSessionName: awsv2.String(sessionName),
	}
	if req.ExternalID != "" {
		input.ExternalId = awsv2.String(req.ExternalID)
	}
	if req.DurationSeconds > 0 {
		input.DurationSeconds = awsv2.Int32(req.DurationSeconds)
	}

	out, err := s.stsFactory.NewFromConfig(cfg).AssumeRole(ctx, input)
	if err != nil {
		return Credentials{}, err
	}

	if out.Credentials == nil {
		return Credentials{}, fmt.Errorf("STS AssumeRole returned empty credentials")
	}

	return Credentials{
		AccessKeyID:     awsv2.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: awsv2.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    awsv2.ToString(out.Credentials.SessionToken),
	}, nil
}

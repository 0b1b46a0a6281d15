package environment

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	awslib "github.com/eculver/environment-url/pkg/aws"
)

// roleAssumer is the subset of the AWS service used to reach environment accounts.
type roleAssumer interface {
	AssumeRole(ctx context.Context, profile string, req awslib.RoleRequest) (awslib.Credentials, error)
}

type dynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoDBLookup implements Lookup against the environments table.
//
// Table schema assumptions:
//   - Partition key: id (String)
//   - instanceInfo stored as a map attribute
//
// Callers may read an environment if they are admins or created it.
type DynamoDBLookup struct {
	client    dynamoDBAPI
	tableName string
	assumer   roleAssumer
	profile   string
}

// NewDynamoDBLookup creates a lookup backed by DynamoDB. Account credentials
// are obtained by assuming each environment's role from the given profile.
func NewDynamoDBLookup(cfg aws.Config, tableName string, assumer roleAssumer, profile string) *DynamoDBLookup {
	return newDynamoDBLookupWithClient(dynamodb.NewFromConfig(cfg), tableName, assumer, profile)
}

func newDynamoDBLookupWithClient(client dynamoDBAPI, tableName string, assumer roleAssumer, profile string) *DynamoDBLookup {
	return &DynamoDBLookup{
		client:    client,
		tableName: tableName,
		assumer:   assumer,
		profile:   profile,
	}
}

type dynamoInstanceInfo struct {
	Type                   string `dynamodbav:"type"`
	Ec2WorkspaceInstanceID string `dynamodbav:"Ec2WorkspaceInstanceId,omitempty"`
	JupyterURL             string `dynamodbav:"JupyterUrl,omitempty"`
	NotebookInstanceName   string `dynamodbav:"NotebookInstanceName,omitempty"`
}

type dynamoItem struct {
	ID             string             `dynamodbav:"id"`
	CreatedBy      string             `dynamodbav:"createdBy"`
	ProjectID      string             `dynamodbav:"projectId"`
	AccountRoleARN string             `dynamodbav:"accountRoleArn"`
	ExternalID     string             `dynamodbav:"externalId"`
	Region         string             `dynamodbav:"region"`
	InstanceInfo   dynamoInstanceInfo `dynamodbav:"instanceInfo"`
}

func fromItem(item *dynamoItem) Environment {
	return Environment{
		ID:             item.ID,
		CreatedBy:      item.CreatedBy,
		ProjectID:      item.ProjectID,
		AccountRoleARN: item.AccountRoleARN,
		ExternalID:     item.ExternalID,
		Region:         item.Region,
		InstanceInfo: InstanceInfo{
			Type:                   ParseType(item.InstanceInfo.Type),
			Ec2WorkspaceInstanceID: item.InstanceInfo.Ec2WorkspaceInstanceID,
			JupyterURL:             item.InstanceInfo.JupyterURL,
			NotebookInstanceName:   item.InstanceInfo.NotebookInstanceName,
		},
	}
}

// MustFind returns the environment if it exists and the caller may access it.
func (l *DynamoDBLookup) MustFind(ctx context.Context, rc RequestContext, id string) (Environment, error) {
	if id == "" {
		return Environment{}, fmt.Errorf("environment id is required")
	}

	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		if isAccessDenied(err) {
			return Environment{}, fmt.Errorf("%w: dynamodb read of environment %q: %w", ErrAccessDenied, id, err)
		}
		return Environment{}, fmt.Errorf("failed to get environment %q: %w", id, err)
	}
	if out.Item == nil {
		return Environment{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Environment{}, fmt.Errorf("failed to unmarshal environment %q: %w", id, err)
	}

	env := fromItem(&item)
	if !canAccess(rc, env) {
		return Environment{}, fmt.Errorf("%w: %q may not access environment %q", ErrAccessDenied, rc.Principal, id)
	}
	return env, nil
}

// CredentialsForEnvironment assumes the environment account's role on behalf
// of a caller who may access the environment.
func (l *DynamoDBLookup) CredentialsForEnvironment(ctx context.Context, rc RequestContext, id string) (awslib.Credentials, error) {
	env, err := l.MustFind(ctx, rc, id)
	if err != nil {
		return awslib.Credentials{}, err
	}
	if env.AccountRoleARN == "" {
		return awslib.Credentials{}, fmt.Errorf("environment %q has no account role", id)
	}

	creds, err := l.assumer.AssumeRole(ctx, l.profile, awslib.RoleRequest{
		RoleARN:    env.AccountRoleARN,
		ExternalID: env.ExternalID,
	})
	if err != nil {
		return awslib.Credentials{}, fmt.Errorf("failed to assume role for environment %q: %w", id, err)
	}
	return creds, nil
}

func canAccess(rc RequestContext, env Environment) bool {
	if rc.IsAdmin {
		return true
	}
	return rc.Principal != "" && rc.Principal == env.CreatedBy
}

func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException":
		return true
	}
	return false
}

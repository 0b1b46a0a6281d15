package environment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"

	awslib "github.com/eculver/environment-url/pkg/aws"
)

type fakeDynamoDB struct {
	item map[string]types.AttributeValue
	err  error

	lastInput *dynamodb.GetItemInput
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

type fakeAssumer struct {
	creds awslib.Credentials
	err   error
	calls int

	lastProfile string
	lastReq     awslib.RoleRequest
}

func (f *fakeAssumer) AssumeRole(ctx context.Context, profile string, req awslib.RoleRequest) (awslib.Credentials, error) {
	f.calls++
	f.lastProfile = profile
	f.lastReq = req
	if f.err != nil {
		return awslib.Credentials{}, f.err
	}
	return f.creds, nil
}

func mustMarshalItem(t *testing.T, item dynamoItem) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		t.Fatalf("failed to marshal item: %v", err)
	}
	return av
}

func sampleItem() dynamoItem {
	return dynamoItem{
		ID:             "env-1",
		CreatedBy:      "arn:aws:iam::123456789012:user/alice",
		ProjectID:      "proj-1",
		AccountRoleARN: "arn:aws:iam::210987654321:role/workspace",
		ExternalID:     "ext-1",
		Region:         "us-west-2",
		InstanceInfo: dynamoInstanceInfo{
			Type:                   "ec2-rstudio",
			Ec2WorkspaceInstanceID: "i-123",
		},
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()

	testCases := map[string]Type{
		"rstudio":      TypeRStudio,
		"ec2-rstudio":  TypeRStudio,
		"emr":          TypeEMR,
		"sagemaker":    TypeSageMaker,
		"unknown-type": Type("unknown-type"),
	}
	for raw, want := range testCases {
		if got := ParseType(raw); got != want {
			t.Fatalf("ParseType(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDynamoDBLookupMustFind(t *testing.T) {
	t.Parallel()

	alice := RequestContext{Principal: "arn:aws:iam::123456789012:user/alice"}
	bob := RequestContext{Principal: "arn:aws:iam::123456789012:user/bob"}
	admin := RequestContext{Principal: "arn:aws:iam::123456789012:user/root", IsAdmin: true}

	testCases := []struct {
		name          string
		rc            RequestContext
		id            string
		client        func(t *testing.T) *fakeDynamoDB
		wantEnv       Environment
		wantIs        error
		wantErrSubstr string
	}{
		{
			name: "creator can read",
			rc:   alice,
			id:   "env-1",
			client: func(t *testing.T) *fakeDynamoDB {
				return &fakeDynamoDB{item: mustMarshalItem(t, sampleItem())}
			},
			wantEnv: Environment{
				ID:             "env-1",
				CreatedBy:      "arn:aws:iam::123456789012:user/alice",
				ProjectID:      "proj-1",
				AccountRoleARN: "arn:aws:iam::210987654321:role/workspace",
				ExternalID:     "ext-1",
				Region:         "us-west-2",
				InstanceInfo: InstanceInfo{
					Type:                   TypeRStudio,
					Ec2WorkspaceInstanceID: "i-123",
				},
			},
		},
		{
			name: "admin can read",
			rc:   admin,
			id:   "env-1",
			client: func(t *testing.T) *fakeDynamoDB {
				return &fakeDynamoDB{item: mustMarshalItem(t, sampleItem())}
			},
		},
		{
			name: "other user is denied",
			rc:   bob,
			id:   "env-1",
			client: func(t *testing.T) *fakeDynamoDB {
				return &fakeDynamoDB{item: mustMarshalItem(t, sampleItem())}
			},
			wantIs:        ErrAccessDenied,
			wantErrSubstr: "may not access environment",
		},
		{
			name: "anonymous caller is denied",
			rc:   RequestContext{},
			id:   "env-1",
			client: func(t *testing.T) *fakeDynamoDB {
				item := sampleItem()
				item.CreatedBy = ""
				return &fakeDynamoDB{item: mustMarshalItem(t, item)}
			},
			wantIs: ErrAccessDenied,
		},
		{
			name: "missing item",
			rc:   alice,
			id:   "env-404",
			client: func(t *testing.T) *fakeDynamoDB {
				return &fakeDynamoDB{}
			},
			wantIs:        ErrNotFound,
			wantErrSubstr: `"env-404"`,
		},
		{
			name: "table access denied",
			rc:   alice,
			id:   "env-1",
			client: func(t *testing.T) *fakeDynamoDB {
				return &fakeDynamoDB{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}}
			},
			wantIs: ErrAccessDenied,
		},
		{
			name: "other api error",
			rc:   alice,
			id:   "env-1",
			client: func(t *testing.T) *fakeDynamoDB {
				return &fakeDynamoDB{err: errors.New("timeout")}
			},
			wantErrSubstr: `failed to get environment "env-1": timeout`,
		},
		{
			name: "empty id",
			rc:   alice,
			client: func(t *testing.T) *fakeDynamoDB {
				return &fakeDynamoDB{}
			},
			wantErrSubstr: "environment id is required",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := tc.client(t)
			lookup := newDynamoDBLookupWithClient(client, "environments", &fakeAssumer{}, "")
			env, err := lookup.MustFind(context.Background(), tc.rc, tc.id)

			if tc.wantIs != nil || tc.wantErrSubstr != "" {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
					t.Fatalf("expected errors.Is(err, %v), got %v", tc.wantIs, err)
				}
				if tc.wantErrSubstr != "" && !strings.Contains(err.Error(), tc.wantErrSubstr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErrSubstr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("MustFind returned error: %v", err)
			}
			if aws.ToString(client.lastInput.TableName) != "environments" {
				t.Fatalf("unexpected table: %q", aws.ToString(client.lastInput.TableName))
			}
			if tc.wantEnv.ID != "" {
				if diff := cmp.Diff(tc.wantEnv, env); diff != "" {
					t.Fatalf("unexpected environment (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestDynamoDBLookupCredentialsForEnvironment(t *testing.T) {
	t.Parallel()

	alice := RequestContext{Principal: "arn:aws:iam::123456789012:user/alice"}

	t.Run("assumes environment role", func(t *testing.T) {
		t.Parallel()

		assumer := &fakeAssumer{creds: awslib.Credentials{AccessKeyID: "ASIA_ENV"}}
		lookup := newDynamoDBLookupWithClient(&fakeDynamoDB{item: mustMarshalItem(t, sampleItem())}, "environments", assumer, "ops")

		creds, err := lookup.CredentialsForEnvironment(context.Background(), alice, "env-1")
		if err != nil {
			t.Fatalf("CredentialsForEnvironment returned error: %v", err)
		}
		if creds.AccessKeyID != "ASIA_ENV" {
			t.Fatalf("unexpected credentials: %+v", creds)
		}
		want := awslib.RoleRequest{RoleARN: "arn:aws:iam::210987654321:role/workspace", ExternalID: "ext-1"}
		if diff := cmp.Diff(want, assumer.lastReq); diff != "" {
			t.Fatalf("unexpected role request (-want +got):\n%s", diff)
		}
		if assumer.lastProfile != "ops" {
			t.Fatalf("unexpected profile: %q", assumer.lastProfile)
		}
	})

	t.Run("denied caller never assumes role", func(t *testing.T) {
		t.Parallel()

		assumer := &fakeAssumer{}
		lookup := newDynamoDBLookupWithClient(&fakeDynamoDB{item: mustMarshalItem(t, sampleItem())}, "environments", assumer, "")

		_, err := lookup.CredentialsForEnvironment(context.Background(), RequestContext{Principal: "mallory"}, "env-1")
		if !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("expected access denied, got %v", err)
		}
		if assumer.calls != 0 {
			t.Fatalf("expected no AssumeRole calls, got %d", assumer.calls)
		}
	})

	t.Run("missing role", func(t *testing.T) {
		t.Parallel()

		item := sampleItem()
		item.AccountRoleARN = ""
		lookup := newDynamoDBLookupWithClient(&fakeDynamoDB{item: mustMarshalItem(t, item)}, "environments", &fakeAssumer{}, "")

		_, err := lookup.CredentialsForEnvironment(context.Background(), alice, "env-1")
		if err == nil || !strings.Contains(err.Error(), "has no account role") {
			t.Fatalf("expected missing role error, got %v", err)
		}
	})

	t.Run("assume role failure", func(t *testing.T) {
		t.Parallel()

		lookup := newDynamoDBLookupWithClient(&fakeDynamoDB{item: mustMarshalItem(t, sampleItem())}, "environments", &fakeAssumer{err: errors.New("sts failed")}, "")

		_, err := lookup.CredentialsForEnvironment(context.Background(), alice, "env-1")
		if err == nil || !strings.Contains(err.Error(), `failed to assume role for environment "env-1": sts failed`) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

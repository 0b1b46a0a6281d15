package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	profile         string
	region          string
	table           string
	domain          string
	secretParameter string
	secretID        string
	auditLogGroup   string
	auditLogStream  string
	auditFile       string
	principal       string
	admin           bool
	open            bool
	sessionSeconds  int32
	verbose         bool
}

func (o *options) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.profile, "profile", "p", "", "AWS profile to use (defaults to AWS_PROFILE)")
	flags.StringVar(&o.region, "region", "", "AWS region for service clients (defaults to AWS_REGION)")
	flags.StringVar(&o.table, "table", "", "DynamoDB table holding environments (defaults to ENVURL_TABLE)")
	flags.StringVar(&o.domain, "domain", "", "Domain under which RStudio hosts are published (defaults to ENVURL_DOMAIN)")
	flags.StringVar(&o.secretParameter, "secret-parameter", "", "SSM parameter holding the RStudio shared secret (defaults to ENVURL_SECRET_PARAMETER)")
	flags.StringVar(&o.secretID, "secret-id", "", "Secrets Manager secret holding the RStudio shared secret, used instead of --secret-parameter (defaults to ENVURL_SECRET_ID)")
	flags.StringVar(&o.auditLogGroup, "audit-log-group", "", "CloudWatch Logs group receiving audit events (defaults to ENVURL_AUDIT_LOG_GROUP)")
	flags.StringVar(&o.auditLogStream, "audit-log-stream", "", "CloudWatch Logs stream receiving audit events (defaults to ENVURL_AUDIT_LOG_STREAM)")
	flags.StringVar(&o.auditFile, "audit-file", "", "File to append JSON audit events to (defaults to ENVURL_AUDIT_FILE)")
	flags.StringVar(&o.principal, "principal", "", "Principal to act as (defaults to the caller ARN)")
	flags.BoolVar(&o.admin, "admin", false, "Act as an administrator who may access any environment")
	flags.BoolVar(&o.open, "open", false, "Open the URL in the default browser instead of printing it")
	flags.Int32Var(&o.sessionSeconds, "notebook-session-seconds", 0, "SageMaker notebook session duration in seconds (0 uses the service default)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
}

// withEnvDefaults fills unset string options from the environment.
func (o options) withEnvDefaults() options {
	fallback := func(value *string, key string) {
		if *value == "" {
			*value = os.Getenv(key)
		}
	}

	fallback(&o.profile, "AWS_PROFILE")
	fallback(&o.region, "AWS_REGION")
	fallback(&o.table, "ENVURL_TABLE")
	fallback(&o.domain, "ENVURL_DOMAIN")
	fallback(&o.secretParameter, "ENVURL_SECRET_PARAMETER")
	fallback(&o.secretID, "ENVURL_SECRET_ID")
	fallback(&o.auditLogGroup, "ENVURL_AUDIT_LOG_GROUP")
	fallback(&o.auditLogStream, "ENVURL_AUDIT_LOG_STREAM")
	fallback(&o.auditFile, "ENVURL_AUDIT_FILE")

	return o
}

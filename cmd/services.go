package cmd

import (
	"errors"
	"fmt"
	"os"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/eculver/environment-url/pkg/audit"
	awslib "github.com/eculver/environment-url/pkg/aws"
	"github.com/eculver/environment-url/pkg/dns"
	"github.com/eculver/environment-url/pkg/environment"
	"github.com/eculver/environment-url/pkg/envurl"
	"github.com/eculver/environment-url/pkg/rstudio"
)

func (o options) validate() error {
	var errs []error
	if o.table == "" {
		errs = append(errs, errors.New("environment table is required (--table or ENVURL_TABLE)"))
	}
	if o.domain == "" {
		errs = append(errs, errors.New("domain is required (--domain or ENVURL_DOMAIN)"))
	}
	if o.secretID == "" && o.secretParameter == "" {
		errs = append(errs, errors.New("a shared secret source is required (--secret-id or --secret-parameter)"))
	}
	if (o.auditLogGroup == "") != (o.auditLogStream == "") {
		errs = append(errs, errors.New("--audit-log-group and --audit-log-stream must be set together"))
	}
	if o.sessionSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid notebook session duration: %d", o.sessionSeconds))
	}
	return errors.Join(errs...)
}

func secretProvider(cfg awsv2.Config, opts options) rstudio.SecretProvider {
	if opts.secretID != "" {
		return awslib.NewSecretsManagerSecretProvider(cfg, opts.secretID, awslib.DefaultSecretCacheTTL)
	}
	return awslib.NewSSMSecretProvider(cfg, opts.secretParameter, awslib.DefaultSecretCacheTTL)
}

// auditWriter builds the configured sinks. With none configured events are
// discarded. The returned func closes any opened file.
func auditWriter(cfg awsv2.Config, opts options) (audit.Writer, func(), error) {
	var writers audit.MultiWriter
	closeFn := func() {}

	if opts.auditFile != "" {
		f, err := os.OpenFile(opts.auditFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		writers = append(writers, audit.NewJSONWriter(f))
		closeFn = func() { _ = f.Close() }
	}
	if opts.auditLogGroup != "" {
		writers = append(writers, audit.NewCloudWatchWriter(cfg, opts.auditLogGroup, opts.auditLogStream))
	}

	return writers, closeFn, nil
}

func newURLService(cfg awsv2.Config, assumer awslib.Service, opts options, logger *zap.Logger) (urlResolver, func(), error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	writer, closeWriter, err := auditWriter(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	emitter := audit.NewAsyncEmitter(writer, logger.Named("audit"), audit.DefaultWriteTimeout)

	lookup := environment.NewDynamoDBLookup(cfg, opts.table, assumer, opts.profile)
	handshake := rstudio.NewHandshake(dns.NewResolver(opts.domain), secretProvider(cfg, opts), rstudio.NewKeyFetcher())
	presigner := awslib.NewNotebookPresigner(cfg.Region, opts.sessionSeconds)

	svc := envurl.NewService(lookup, handshake, presigner, emitter, logger)
	return svc, func() {
		emitter.Wait()
		closeWriter()
	}, nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	awslib "github.com/eculver/environment-url/pkg/aws"
	"github.com/eculver/environment-url/pkg/environment"
	"github.com/eculver/environment-url/pkg/envurl"
)

// Executor abstracts command execution for easier testing.
type Executor interface {
	Run(name string, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error
	Start(name string, args []string) error
}

type osExecutor struct{}

func (osExecutor) Run(name string, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	cliCmd := exec.Command(name, args...)
	cliCmd.Stdin = stdin
	cliCmd.Stdout = stdout
	cliCmd.Stderr = stderr
	return cliCmd.Run()
}

func (osExecutor) Start(name string, args []string) error {
	return exec.Command(name, args...).Start()
}

// awsClient is the AWS surface the CLI needs: identity checks, role
// assumption for environment accounts, and config for service clients.
type awsClient interface {
	awslib.Service
	LoadConfig(ctx context.Context, profile string) (awsv2.Config, error)
}

type urlResolver interface {
	GetURL(ctx context.Context, rc environment.RequestContext, id string) (envurl.Result, error)
}

// serviceFactory builds the URL service and returns a func that flushes
// pending audit writes and releases resources.
type serviceFactory func(cfg awsv2.Config, assumer awslib.Service, opts options, logger *zap.Logger) (urlResolver, func(), error)

type runDeps struct {
	newAWS        func(region string) awsClient
	newURLService serviceFactory
	newLogger     func(verbose bool) (*zap.Logger, error)
	login         func(string) error
	open          func(string) error
	executor      Executor
	goos          string
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer
}

type workflowRunner func(ctx context.Context, id string, opts options, deps runDeps) error

// NewRootCmd creates the root CLI command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultRunDeps(), runWorkflow)
}

func newRootCmd(deps runDeps, runner workflowRunner) *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "environment-url <environment-id>",
		Short: "Print or open the authorized console URL for a workspace environment",
		Long: `Looks up a workspace environment you have access to and produces a URL that
signs you in to its console: RStudio via an encrypted credential handshake,
EMR via its Jupyter URL, and SageMaker via a presigned notebook URL.
If AWS credentials are expired or missing, it will attempt to run
'aws sso login' to refresh them.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner(context.Background(), args[0], opts.withEnvDefaults(), deps)
		},
	}

	opts.register(rootCmd)

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func defaultRunDeps() runDeps {
	deps := runDeps{
		newAWS: func(region string) awsClient {
			return awslib.NewService(region)
		},
		newURLService: newURLService,
		newLogger:     newLogger,
		executor:      osExecutor{},
		goos:          runtime.GOOS,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
	}

	deps.login = func(profile string) error {
		return ssoLogin(profile, deps)
	}
	deps.open = func(targetURL string) error {
		return openBrowser(targetURL, deps)
	}

	return deps
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func runWorkflow(ctx context.Context, id string, opts options, deps runDeps) error {
	logger, err := deps.newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	awsService := deps.newAWS(opts.region)

	identity, err := awsService.GetCallerIdentity(ctx, opts.profile)
	if err != nil {
		fmt.Fprintln(deps.stderr, "Credentials are not valid, attempting SSO login...")
		if loginErr := deps.login(opts.profile); loginErr != nil {
			return fmt.Errorf("SSO login failed: %w", loginErr)
		}

		identity, err = awsService.GetCallerIdentity(ctx, opts.profile)
		if err != nil {
			return fmt.Errorf("credentials still invalid after SSO login: %w", err)
		}
	}

	fmt.Fprintf(deps.stderr, "Authenticated as: %s\n", identity.Arn)

	cfg, err := awsService.LoadConfig(ctx, opts.profile)
	if err != nil {
		return err
	}

	resolver, closeFn, err := deps.newURLService(cfg, awsService, opts, logger)
	if err != nil {
		return fmt.Errorf("failed to configure environment URL service: %w", err)
	}
	defer closeFn()

	principal := opts.principal
	if principal == "" {
		principal = identity.Arn
	}
	rc := environment.RequestContext{Principal: principal, IsAdmin: opts.admin}

	result, err := resolver.GetURL(ctx, rc, id)
	if err != nil {
		return fmt.Errorf("failed to get URL for environment %s (%s): %w", id, envurl.Classify(err), err)
	}

	if result.AuthorizedURL == "" {
		fmt.Fprintf(deps.stderr, "No URL is available for environment %s\n", id)
		return nil
	}

	if !opts.open {
		fmt.Fprintln(deps.stdout, result.AuthorizedURL)
		return nil
	}

	fmt.Fprintln(deps.stderr, "Opening environment in your browser...")
	return deps.open(result.AuthorizedURL)
}

// ssoLogin shells out to the AWS CLI to perform an SSO login.
func ssoLogin(profile string, deps runDeps) error {
	args := []string{"sso", "login"}
	if profile != "" {
		args = append(args, "--profile", profile)
	}

	return deps.executor.Run("aws", args, deps.stdin, deps.stdout, deps.stderr)
}

// openBrowser opens the given URL in the user's default browser.
func openBrowser(targetURL string, deps runDeps) error {
	var command string
	var args []string

	switch deps.goos {
	case "darwin":
		command = "open"
	case "linux":
		command = "xdg-open"
	case "windows":
		command = "rundll32"
		args = []string{"url.dll,FileProtocolHandler"}
	default:
		return fmt.Errorf("unsupported platform: %s", deps.goos)
	}

	args = append(args, targetURL)
	return deps.executor.Start(command, args)
}

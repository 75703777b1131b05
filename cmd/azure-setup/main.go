package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/wajahatashraf/azure-setup/pkg/api"
	"github.com/wajahatashraf/azure-setup/pkg/azure"
	"github.com/wajahatashraf/azure-setup/pkg/scrape"
	"github.com/wajahatashraf/azure-setup/pkg/secrets"
	"github.com/wajahatashraf/azure-setup/pkg/testbed"
)

const (
	logStyleJson = "json"
	logStyleText = "text"

	defaultScrapeURL = "https://example.com"
)

type options struct {
	logLevel string
	logStyle string
	envFile  string
	config   string

	skipImage  bool
	runTimeout time.Duration

	confirm bool

	scrapeTimeout time.Duration
}

func (o *options) bindRootFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.logLevel, "log-level", "info", "Logging level.")
	fs.StringVar(&o.logStyle, "log-style", logStyleText, "Logging style: json or text.")
	fs.StringVar(&o.envFile, "env-file", ".env", "Env file with the Azure credentials, loaded when present.")
	fs.StringVar(&o.config, "config", "", "Path to the testbed configuration. Defaults apply when omitted.")
}

var (
	opts = options{}

	// censor scrubs the client secret and the registry passwords out of
	// every log line.
	censor = secrets.NewDynamicCensor()
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logrus.WithField("signal", s).Warn("Received signal, shutting down")
		cancel()
	}()

	if err := newRootCmd(ctx).Execute(); err != nil {
		logrus.WithError(err).Fatal("azure-setup failed")
	}
}

func newRootCmd(ctx context.Context) *cobra.Command {
	cmd := cobra.Command{
		Use:           "azure-setup",
		Short:         "Provision and tear down the blazetest Azure testbed",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}
			return loadEnvFile()
		},
	}
	opts.bindRootFlags(cmd.PersistentFlags())

	log := logrus.NewEntry(logrus.StandardLogger())
	cmd.AddCommand(newInitCmd(ctx, log))
	cmd.AddCommand(newSetupCmd(ctx, log))
	cmd.AddCommand(newResetCmd(ctx, log))
	cmd.AddCommand(newScrapeCmd(ctx, log))
	return &cmd
}

func setupLogging() error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("--log-level invalid: %w", err)
	}
	logrus.SetLevel(level)

	var formatter logrus.Formatter
	switch opts.logStyle {
	case logStyleJson:
		formatter = &logrus.JSONFormatter{}
	case logStyleText:
		formatter = &logrus.TextFormatter{
			ForceColors:     true,
			DisableQuote:    true,
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		}
	default:
		return fmt.Errorf("--log-style must be one of %s or %s, not %s", logStyleText, logStyleJson, opts.logStyle)
	}
	logrus.SetFormatter(censor.Formatter(formatter))
	return nil
}

// loadEnvFile loads the credentials from the env file, which is optional
// so a fully exported environment works too.
func loadEnvFile() error {
	if _, err := os.Stat(opts.envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(opts.envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", opts.envFile, err)
	}
	return nil
}

func newClient(log *logrus.Entry) (*azure.Client, error) {
	cfg := azure.ConfigFromEnv()
	censor.AddSecrets(cfg.ClientSecret)
	return azure.NewClient(cfg, azure.WithLogger(log))
}

func newInitCmd(ctx context.Context, log *logrus.Entry) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Verify that the Azure credentials grant access to the subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info("Verifying Azure credentials")
			client, err := newClient(log)
			if err != nil {
				return err
			}
			groups, err := client.ListResourceGroups(ctx, "")
			if err != nil {
				return fmt.Errorf("list resource groups: %w", err)
			}
			log.WithField("resource_groups", len(groups)).Info("Access verified")
			return nil
		},
	}
}

func newSetupCmd(ctx context.Context, log *logrus.Entry) *cobra.Command {
	cmd := cobra.Command{
		Use:   "setup",
		Short: "Provision the testbed and run the test container to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := api.LoadConfig(opts.config)
			if err != nil {
				return err
			}
			if opts.runTimeout > 0 {
				config.Runner.Timeout = &metav1.Duration{Duration: opts.runTimeout}
			}
			client, err := newClient(log)
			if err != nil {
				return err
			}

			tb := &testbed.Testbed{Config: config}
			steps := []testbed.Step{
				testbed.NewEnsureResourceGroupStep(log, tb, client),
				testbed.NewEnsureStorageAccountStep(log, tb, client),
				testbed.NewEnsureRegistryStep(log, tb, client, &censor),
			}
			if !opts.skipImage {
				steps = append(steps, testbed.NewBuildImageStep(log, tb, buildCmd, runCmd))
			}
			steps = append(steps, testbed.NewRunContainerStep(log, tb, client, os.Stdout))
			return testbed.Run(ctx, log, steps)
		},
	}
	cmd.Flags().BoolVar(&opts.skipImage, "skip-image", false, "Skip the docker build and push, the image must already be in the registry.")
	cmd.Flags().DurationVar(&opts.runTimeout, "run-timeout", 0, "Bound the container run, overriding the configured timeout.")
	return &cmd
}

func newResetCmd(ctx context.Context, log *logrus.Entry) *cobra.Command {
	cmd := cobra.Command{
		Use:   "reset",
		Short: "Delete every resource group the testbed tagged as its own",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(log)
			if err != nil {
				return err
			}
			return testbed.Teardown(ctx, log, client, testbed.TeardownOptions{
				Confirmed: opts.confirm,
				In:        os.Stdin,
				Out:       os.Stdout,
			})
		},
	}
	cmd.Flags().BoolVar(&opts.confirm, "confirm", false, "Skip the interactive confirmation.")
	return &cmd
}

func newScrapeCmd(ctx context.Context, log *logrus.Entry) *cobra.Command {
	cmd := cobra.Command{
		Use:   "scrape [url]",
		Short: "Fetch a web page and print a short summary of its structure",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := defaultScrapeURL
			if len(args) > 0 {
				url = args[0]
			}
			log.WithField("url", url).Info("Fetching page")
			summary, err := scrape.NewFetcher(opts.scrapeTimeout).FetchSummary(ctx, url)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), url, summary)
			return nil
		},
	}
	cmd.Flags().DurationVar(&opts.scrapeTimeout, "timeout", scrape.DefaultTimeout, "Give up on the fetch after this long.")
	return &cmd
}

func printSummary(w io.Writer, url string, summary scrape.Summary) {
	fmt.Fprintf(w, "%s\n", url)
	if summary.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", summary.Title)
	}
	if len(summary.Headings) > 0 {
		fmt.Fprintf(w, "Headings (%d):\n", len(summary.Headings))
		for _, heading := range summary.Headings {
			fmt.Fprintf(w, "  %s\n", heading)
		}
	}
	if len(summary.Links) > 0 {
		fmt.Fprintf(w, "Links (%d):\n", len(summary.Links))
		for _, link := range summary.Links {
			fmt.Fprintf(w, "  %s (%s)\n", link.Text, link.Href)
		}
	}
	fmt.Fprintf(w, "Images: %d\n", summary.Images)
}

func buildCmd(ctx context.Context, program string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func runCmd(cmd *exec.Cmd) error {
	return cmd.Run()
}

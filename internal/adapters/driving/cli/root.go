package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/wikisync/internal/core/ports/driving"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// Command annotations read by the pre-run hook.
const (
	annotationServices = "services"
	servicesNone       = "none"
	servicesSource     = "source"
)

// Services are the driving ports the commands call into.
type Services struct {
	Sync   driving.SyncService
	Index  driving.IndexAdmin
	Search driving.SearchService

	// Close releases the resources behind the services. Optional.
	Close func() error
}

// Bootstrap builds the services from the configuration file.
// withSource is set for commands that read from the wiki.
type Bootstrap func(ctx context.Context, configPath string, withSource bool) (*Services, error)

var (
	version = "dev"

	configPath string
	verbose    bool

	bootstrap     Bootstrap
	closeServices func() error

	syncService   driving.SyncService
	indexAdmin    driving.IndexAdmin
	searchService driving.SearchService
)

var rootCmd = &cobra.Command{
	Use:   "wikisync",
	Short: "Synchronise Confluence into a search index",
	Long: `wikisync keeps a search index in line with Confluence spaces.
Each pass creates records for new pages, rewrites changed pages, removes
archived or deleted pages and purges attachments that no longer exist.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file (default ./wikisync.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetBootstrap installs the function that builds the services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute(v string) error {
	if v != "" {
		version = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Post-run hooks are skipped when a command fails.
	defer func() { _ = teardown(nil, nil) }()

	return rootCmd.ExecuteContext(ctx)
}

// setup builds the services unless the command needs none.
func setup(cmd *cobra.Command, _ []string) error {
	if verbose {
		logger.SetVerbose(true)
	}

	mode := cmd.Annotations[annotationServices]
	if mode == servicesNone || bootstrap == nil {
		return nil
	}

	svc, err := bootstrap(cmd.Context(), configPath, mode == servicesSource)
	if err != nil {
		return err
	}
	syncService = svc.Sync
	indexAdmin = svc.Index
	searchService = svc.Search
	closeServices = svc.Close
	return nil
}

// teardown releases the services built by setup.
func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

var errNotConfigured = errors.New("service not configured")

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cash-interchange-service/cmd/interchange/config"
	"cash-interchange-service/internal/ledger"
	"cash-interchange-service/internal/pipeline"
	"cash-interchange-service/internal/resolve"
	"cash-interchange-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// channel flag values
const (
	channelAll   = "all"
	channelXML   = "xml"
	channelText  = "text"
	channelSheet = "sheet"
)

var ingestChannel string

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Sweep the input folders once and process every pending file",
	Long: `Ingest runs a single sweep: every file pending in the configured
input folders is normalized, written to the ledger, acknowledged, and
routed to its terminal folder.

Configuration comes from the environment (prefix INTERCHANGE_), optionally
seeded from a .env file.

Examples:
  # Process every configured channel once
  interchange ingest

  # Only the XML channel
  interchange ingest --channel xml

  # With an explicit env file
  interchange ingest --env-file /etc/interchange/.env`,

	PreRunE: validateIngestFlags,
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestChannel, "channel", "c", channelAll, "channel to sweep: xml, text, sheet, all")
	viper.BindPFlag("channel", ingestCmd.Flags().Lookup("channel"))
}

func validateIngestFlags(cmd *cobra.Command, args []string) error {
	ingestChannel = strings.ToLower(viper.GetString("channel"))
	switch ingestChannel {
	case channelAll, channelXML, channelText, channelSheet:
		return nil
	}
	return fmt.Errorf("invalid channel '%s'. Valid channels: xml, text, sheet, all", ingestChannel)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return p.RunOnce(ctx)
}

// buildPipeline loads the settings and wires the resolver, the ledger
// gateway, and the pipeline. The returned cleanup closes the database pools.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	settings, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		settings.LogLevel = "debug"
	}
	if err := settings.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logger.NewLogger(settings.LoggerConfig())
	if err != nil {
		return nil, nil, err
	}
	logger.SetGlobalLogger(log)

	var pools []*pgxpool.Pool
	cleanup := func() {
		for _, pool := range pools {
			pool.Close()
		}
	}

	refPool, err := resolve.OpenPool(ctx, settings.ReferenceDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to the reference database: %w", err)
	}
	pools = append(pools, refPool)
	resolver := resolve.NewCodeResolver(resolve.NewPostgresStore(refPool), log)

	var gateway ledger.Gateway
	switch settings.LedgerBackend {
	case config.BackendPostgres:
		ledgerPool, err := ledger.OpenPool(ctx, settings.LedgerDatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to the ledger database: %w", err)
		}
		pools = append(pools, ledgerPool)
		gateway = ledger.NewPostgresGateway(ledgerPool, log)

	case config.BackendAPI:
		gateway, err = ledger.NewAPIGateway(settings.APIConfig(), log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	cfg := settings.PipelineConfig()
	restrictChannels(&cfg)

	p, err := pipeline.NewPipeline(cfg, resolver, gateway, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Ledger backend: %s\n", settings.LedgerBackend)
		fmt.Fprintf(os.Stderr, "Channel: %s\n", ingestChannel)
	}

	return p, cleanup, nil
}

// restrictChannels blanks the input folders of the channels the --channel
// flag excludes
func restrictChannels(cfg *pipeline.Config) {
	if ingestChannel == channelAll || ingestChannel == "" {
		return
	}
	if ingestChannel != channelXML {
		cfg.XMLInput = ""
	}
	if ingestChannel != channelText {
		cfg.TextInput = ""
	}
	if ingestChannel != channelSheet {
		cfg.SheetInput = ""
	}
}

// Command vecsim ingests a product catalog into a vector similarity engine,
// publishes it as a snapshot and answers recommendation queries against the
// current snapshot.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	// version is set at build time
	version = "dev"

	// CLI flags
	envFile string
	debug   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "vecsim",
		Short:        "Vector similarity search for product catalogs",
		Long:         "vecsim embeds product catalogs and answers similar product and text search queries",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(
		newIngestCmd(),
		newSimilarCmd(),
		newSearchCmd(),
		newSubstitutesCmd(),
		newInfoCmd(),
		newPruneCmd(),
	)
	return rootCmd
}

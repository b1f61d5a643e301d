package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taxsyncpro/taxsync/internal/app"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/logger"
)

// cli carries the global flags and the services opened for one command.
type cli struct {
	dsn      string
	envFile  string
	logLevel string
	asJSON   bool

	app *app.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:   "taxsync",
		Short: "Bulk-import expense spreadsheets into the receipt store",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:       true,
		PersistentPreRunE:  c.open,
		PersistentPostRunE: c.close,
	}
	rootCmd.PersistentFlags().StringVar(&c.dsn, "db", "", "store DSN; a *.json path selects the file store (overrides DB_URL)")
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		c.analyzeCmd(),
		c.importCmd(),
		c.importDirCmd(),
		c.watchCmd(),
		c.historyCmd(),
		c.presetsCmd(),
		c.receiptsCmd(),
		c.clientsCmd(),
		c.categoriesCmd(),
		c.reportCmd(),
		c.exportCmd(),
		c.serveCmd(),
	)

	return rootCmd
}

func (c *cli) open(cmd *cobra.Command, _ []string) error {
	common.LoadDotEnv(c.envFile)
	cfg := common.LoadConfig()
	if c.dsn != "" {
		cfg.Database.DSN = c.dsn
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	log := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("%s", common.UserMessage(err))
	}
	c.app = a
	return nil
}

func (c *cli) close(*cobra.Command, []string) error {
	return c.app.Close()
}

// printJSON writes v indented when --json is set and reports whether it did.
func (c *cli) printJSON(w io.Writer, v any) (bool, error) {
	if !c.asJSON {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// userError replaces err with the message a person running the command
// should see.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", common.UserMessage(err))
}

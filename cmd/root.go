// =============================================================================
// CPS Tax-Unit Builder - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'process', 'validate') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (taxunits)
//   ├── processCmd (taxunits process)
//   ├── validateCmd (taxunits validate)
//   └── versionCmd (taxunits version)
//
// The root command owns the global flags (--config, --verbose) and builds the
// run logger before any subcommand executes.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// logger is built in PersistentPreRunE and shared by every subcommand.
var logger = zap.NewNop()

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "taxunits",
	Short: "CPS Tax-Unit Builder - Convert CPS person records into tax filing units",
	Long: `CPS Tax-Unit Builder converts Current Population Survey (ASEC) person
records, already merged with imputed benefit columns, into synthetic tax
filing units: a head, an optional spouse and the dependents they can claim.

Key Features:
  - One person table per survey year, converted concurrently by household
  - Filing status and filing requirement per unit
  - Optional scaling to state-level income targets
  - Optional multi-year assembly with seeded filer adjustment
  - CSV (optionally gzipped), XLSX and SQLite output

Example Usage:
  taxunits process                     # Convert every configured survey year
  taxunits process --year 2015         # Convert a single survey year
  taxunits validate                    # Check configuration and inputs only`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. Interrupts cancel the command's context so a
// running conversion stops between households.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

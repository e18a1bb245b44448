// =============================================================================
// CPS Tax-Unit Builder - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   taxunits validate
//
// Loads the configuration and checks that every input file exists and carries
// the columns its survey year needs. No household is processed.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/validation"
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and input files without processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		mainConfig, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load main config: %w", err)
		}
		return runValidate(mainConfig, logger, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// runValidate checks the inputs of mainConfig and prints the outcome.
func runValidate(mainConfig *config.MainConfig, logger *zap.Logger, out io.Writer) error {
	fmt.Fprintf(out, "Configuration OK: %d survey year(s), output to %s\n",
		len(mainConfig.Inputs), mainConfig.OutputDir)

	if err := validation.CheckInputs(mainConfig); err != nil {
		logger.Error("input check failed", zap.Error(err))
		fmt.Fprintf(out, "Input check failed:\n%v\n", err)
		return err
	}

	for _, in := range mainConfig.Inputs {
		fmt.Fprintf(out, "  ✓ %d %s\n", in.Year, in.Path)
	}
	if mainConfig.StateTargets != "" {
		fmt.Fprintf(out, "  ✓ state targets %s\n", mainConfig.StateTargets)
	}
	return nil
}

// =============================================================================
// CPS Tax-Unit Builder - Main Entry Point
// =============================================================================
//
// USAGE:
//   taxunits process       - Convert every configured survey year
//   taxunits validate      - Check configuration and inputs without processing
//   taxunits version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Tax-unit construction and the pipeline around it
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/cps-tax-units/cmd"
)

func main() {
	cmd.Execute()
}

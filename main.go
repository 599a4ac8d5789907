// =============================================================================
// SPED Anonymizer - Main Entry Point
// =============================================================================
//
// This is the main entry point for the SPED Anonymizer CLI application. It
// delegates command execution to the cmd package.
//
// USAGE:
//   sped-anonymizer process   - Anonymize all SPED files in the input directory
//   sped-anonymizer verify    - Check anonymized files for consistency
//   sped-anonymizer rules     - Validate or export the record rule table
//   sped-anonymizer history   - List files recorded in the ledger
//   sped-anonymizer version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/                : CLI command definitions (Cobra)
//   - internal/checkdigit : CNPJ, CPF and document key check digits
//   - internal/identity   : identity substitution policy
//   - internal/rules      : the per-record field rule table
//   - internal/engine     : applies the rules to one file pass
//   - internal/anonymizer : the file pipeline
//   - pkg/utils           : file discovery, archival and reports
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sped-anonymizer/cmd"
)

func main() {
	cmd.Execute()
}

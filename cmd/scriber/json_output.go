package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints a job view or status payload as indented JSON, the
// machine-readable counterpart to the table output. Encoding goes to
// the command's stdout so tests can capture it.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"io"
	"slices"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [request|response|diagnosis]",
	Short: "Print the JSON schema of the activation API",
	Long: `Print the JSON schema of an activation request, response or diagnosis.
Without an argument every schema is printed, keyed by name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return runSchemaCommand(cmd.OutOrStdout(), name)
	},
}

func runSchemaCommand(out io.Writer, name string) error {
	schemas := activation.Schemas()
	if name == "" {
		return writeJSON(out, schemas)
	}

	schema, ok := schemas[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(schemas))
		for n := range schemas {
			names = append(names, n)
		}
		slices.Sort(names)
		return errors.Errorf("unknown schema %q, expected one of %s", name, strings.Join(names, ", "))
	}
	return writeJSON(out, schema)
}

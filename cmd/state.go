package main

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/loan-desk/internal/model"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the full stored document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Engine.Snapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "state")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeDocument(cmd.OutOrStdout(), doc, format)
	},
}

// writeDocument renders doc as indented JSON or as YAML.
func writeDocument(w io.Writer, doc *model.Document, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(doc)
	case "yaml":
		// Round-trip through JSON so the YAML keys match the stored document.
		body, err := json.Marshal(doc)
		if err != nil {
			return eris.Wrap(err, "state: marshal document")
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var tree any
		if err := dec.Decode(&tree); err != nil {
			return eris.Wrap(err, "state: decode document")
		}
		tree, err = yamlNumbers(tree)
		if err != nil {
			return eris.Wrap(err, "state: convert numbers")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return eris.Wrap(err, "state: encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("state: unknown format %q (want json or yaml)", format)
	}
}

// yamlNumbers replaces json.Number leaves with int64 or float64 so yaml
// writes them as numbers rather than quoted strings.
func yamlNumbers(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return t.Float64()
	case map[string]any:
		for k, child := range t {
			c, err := yamlNumbers(child)
			if err != nil {
				return nil, err
			}
			t[k] = c
		}
	case []any:
		for i, child := range t {
			c, err := yamlNumbers(child)
			if err != nil {
				return nil, err
			}
			t[i] = c
		}
	}
	return v, nil
}

func init() {
	stateCmd.Flags().String("format", "json", "output format: json or yaml")
	rootCmd.AddCommand(stateCmd)
}

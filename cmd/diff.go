package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"supaconnect/internal/category"
	"supaconnect/internal/diff"
)

const defaultDiffName = "Config"

var diffCmd = &cobra.Command{
	Use:   "diff <source.json> <dest.json>",
	Short: "Compare two configuration files offline",
	Long: `Compare two JSON configuration documents the same way a preview does and
print one line per difference. The exit status is 1 when the documents differ.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var (
	diffCategory string
	diffJSON     bool
)

func init() {
	diffCmd.Flags().StringVar(&diffCategory, "category", "", "Category the documents belong to, e.g. secrets")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	name := defaultDiffName
	if diffCategory != "" {
		cat, ok := category.Lookup(diffCategory)
		if !ok {
			return fmt.Errorf("unknown category %q", diffCategory)
		}
		name = cat.Name
	}

	source, err := readDocument(args[0])
	if err != nil {
		return err
	}
	dest, err := readDocument(args[1])
	if err != nil {
		return err
	}

	result, changed := diff.Compare(name, source, dest)
	out := cmd.OutOrStdout()

	if diffJSON {
		if !changed {
			result = &diff.Result{Name: name, Changes: []diff.Change{}}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else if changed {
		for _, change := range result.Changes {
			fmt.Fprintf(out, "%s: %s -> %s\n", change.Path, change.OldValue, change.NewValue)
		}
	}

	if changed {
		return exitError{code: 1}
	}
	return nil
}

func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	v, err := diff.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

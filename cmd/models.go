package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

// maxNameWidth keeps the table readable when a model has a long
// registry path in its name.
const maxNameWidth = 64

var (
	modelsJSON   bool
	modelsFilter string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on the Ollama daemon",
	Long: `List the models available on the Ollama daemon.

Examples:
  llamabridge models                  # table of local models
  llamabridge models --filter coder   # fuzzy match, best first
  llamabridge models --json           # {"models": [...]}`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
	modelsCmd.Flags().StringVarP(&modelsFilter, "filter", "f", "", "Fuzzy filter on model names")
}

func runModels(cmd *cobra.Command, args []string) error {
	facade, err := newFacade(cfg)
	if err != nil {
		return err
	}

	names, err := facade.GetModels(cmd.Context())
	if err != nil {
		return err
	}
	names = filterModels(names, modelsFilter)

	out := cmd.OutOrStdout()
	if modelsJSON {
		if names == nil {
			names = []string{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]string{"models": names})
	}

	if len(names) == 0 {
		if modelsFilter != "" {
			fmt.Fprintf(out, "No models match %q.\n", modelsFilter)
		} else {
			fmt.Fprintln(out, "No models found. Pull one with `ollama pull <model>`.")
		}
		return nil
	}

	fmt.Fprintln(out, renderModelsTable(names, out))
	return nil
}

// filterModels returns names that fuzzy-match query, best match first. An
// empty query keeps the daemon's order.
func filterModels(names []string, query string) []string {
	if query == "" {
		return names
	}
	matches := fuzzy.Find(query, names)
	filtered := make([]string, len(matches))
	for i, m := range matches {
		filtered[i] = m.Str
	}
	return filtered
}

func renderModelsTable(names []string, out io.Writer) string {
	tw := table.NewWriter()
	if isTerminal(out) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.AppendHeader(table.Row{"#", "Model"})
	for i, name := range names {
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), runewidth.Truncate(name, maxNameWidth, "…")})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
	})
	return tw.Render()
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/adopter"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/schema"
)

var planBundle string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which bundles a walk can reach",
	Long: `Plan reads the field definitions of a host bundle and shows every
bundle a walk can reach through structural and shared references, which rich
text fields are scanned, and whether the schema allows blocks to nest inside
themselves.

The plan shows:
  - Reachable bundles by depth
  - Reference fields connecting them
  - Reference cycles (walks still terminate)

Example:
  embedadopt plan --config embedadopt.yaml --bundle article`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planBundle, "bundle", "b", "",
		"Host bundle to plan (required)")
	planCmd.MarkFlagRequired("bundle")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts := adopter.OptionsFromConfig(a.cfg.Adoption)
	g, err := schema.NewBuilder(a.store, opts).Build(ctx, a.cfg.Adoption.HostKind, planBundle)
	if err != nil {
		return fmt.Errorf("failed to build schema graph: %w", err)
	}

	printPlan(g, opts)
	return nil
}

// printPlan renders the graph of one host bundle.
func printPlan(g *schema.Graph, opts adopter.Options) {
	printHeader("Adoption Plan: %s", g.Root)

	fmt.Fprintln(outputWriter)
	printSection("Overview")
	fmt.Fprintf(outputWriter, "  Collector Field: %s\n", opts.CollectorField)
	fmt.Fprintf(outputWriter, "  Embed Filter:    %s\n", opts.EmbedFilter)
	fmt.Fprintf(outputWriter, "  Bundles:         %d\n", g.NodeCount())
	fmt.Fprintf(outputWriter, "  References:      %d\n", g.EdgeCount())

	depths := g.Depths()
	keys := g.AllNodes()
	sort.SliceStable(keys, func(i, j int) bool { return depths[keys[i]] < depths[keys[j]] })

	fmt.Fprintln(outputWriter)
	printSection("Reachable Bundles")
	var rows [][]string
	for _, key := range keys {
		node := g.GetNode(key)
		text := strings.Join(node.TextFields, ", ")
		if text == "" {
			text = "-"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", depths[key]), key, text})
	}
	printTable([]string{"DEPTH", "BUNDLE", "SCANNED FIELDS"}, rows)

	fmt.Fprintln(outputWriter)
	printSection("References")
	for _, e := range g.AllEdges() {
		fmt.Fprintf(outputWriter, "  • %s → %s (%s)\n", e.From, e.To, strings.Join(g.EdgeFields(e.From, e.To), ", "))
	}

	fmt.Fprintln(outputWriter)
	printSection("Cycles")
	var cycleErr *schema.CycleError
	if err := g.Validate(); errors.As(err, &cycleErr) {
		fmt.Fprintf(outputWriter, "  %s %s\n", status("cycle"), strings.Join(cycleErr.Info.CyclePath, " -> "))
		fmt.Fprintf(outputWriter, "  Bundles in cycle: %s\n", strings.Join(cycleErr.Info.CycleParticipants, ", "))
		fmt.Fprintln(outputWriter, "  Each record is visited once per walk, so nested content still terminates.")
	} else {
		fmt.Fprintf(outputWriter, "  %s no reference cycles\n", status("ok"))
	}
}

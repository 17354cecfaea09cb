package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/database"
)

var scanBundle string

var scanCmd = &cobra.Command{
	Use:   "scan [host-uuid...]",
	Short: "List embedded block identifiers without adopting",
	Long: `Scan runs the same discovery as adopt but writes nothing. For each host
it prints the embedded identifiers found and walk statistics.

Example:
  embedadopt scan --config embedadopt.yaml --bundle article`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanBundle, "bundle", "b", "",
		"Scan every host of this bundle")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := database.SetupSignalHandler()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := a.engine()
	if err != nil {
		return err
	}

	hosts, err := a.hosts(ctx, args, scanBundle)
	if err != nil {
		return err
	}

	var rows [][]string
	for _, host := range hosts {
		ids, stats, err := engine.Scan(ctx, host)
		if err != nil {
			return fmt.Errorf("scan %s: %w", host.UUID, err)
		}
		rows = append(rows, []string{
			host.UUID,
			strconv.Itoa(stats.RecordsVisited),
			strconv.Itoa(stats.MaxDepth),
			strconv.Itoa(ids.Len()),
			strings.Join(ids.Values(), ","),
		})
	}

	printHeader("Embedded Blocks")
	printTable([]string{"HOST", "VISITED", "DEPTH", "FOUND", "IDENTIFIERS"}, rows)
	return nil
}

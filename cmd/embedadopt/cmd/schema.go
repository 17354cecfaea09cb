package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the record store tables",
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the record store tables if they do not exist",
	Long: `Init creates the records, field definition, field item, text format,
filter and module tables used by the SQL record store. Existing tables are
left untouched.

Example:
  embedadopt schema init --config embedadopt.yaml`,
	RunE: runSchemaInit,
}

func init() {
	schemaCmd.AddCommand(schemaInitCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	a.log.Infow("Schema ready", "driver", a.cfg.Database.Driver, "prefix", a.cfg.Database.TablePrefix)
	fmt.Fprintf(outputWriter, "Schema ready (%s)\n", a.cfg.Database.Driver)
	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and check the record store",
	Long: `Validate checks the configuration file and runs checks against the
record store to make sure adoption can run.

Checks performed:
  - Configuration syntax and required fields
  - Database connectivity
  - Required module status
  - Host bundles carrying the collector field

Example:
  embedadopt validate --config embedadopt.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("Starting validation checks...")

	if err := a.db.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	adoption := a.cfg.Adoption
	fmt.Fprintf(outputWriter, "\n=== Configuration Validation ===\n")
	fmt.Fprintf(outputWriter, "Config file: %s\n", GetConfigFile())
	fmt.Fprintf(outputWriter, "Driver: %s\n\n", a.cfg.Database.Driver)

	hasErrors := false

	if adoption.RequiredModule != "" {
		active, err := a.store.IsModuleActive(ctx, adoption.RequiredModule)
		switch {
		case err != nil:
			fmt.Fprintf(outputWriter, "❌ Module check failed: %v\n", err)
			hasErrors = true
		case !active:
			fmt.Fprintf(outputWriter, "❌ Module %s is not active\n", adoption.RequiredModule)
			hasErrors = true
		default:
			fmt.Fprintf(outputWriter, "✅ Module %s is active\n", adoption.RequiredModule)
		}
	}

	bundles, err := a.store.Bundles(ctx, adoption.HostKind)
	if err != nil {
		return fmt.Errorf("failed to list %s bundles: %w", adoption.HostKind, err)
	}

	ready := 0
	for _, bundle := range bundles {
		defs, err := a.store.FieldDefinitions(ctx, adoption.HostKind, bundle)
		if err != nil {
			return fmt.Errorf("failed to read %s.%s fields: %w", adoption.HostKind, bundle, err)
		}
		for _, def := range defs {
			if def.Name == adoption.CollectorField {
				if def.TargetKind != adoption.BlockKind {
					fmt.Fprintf(outputWriter, "❌ %s.%s: %s targets %q, want %q\n",
						adoption.HostKind, bundle, def.Name, def.TargetKind, adoption.BlockKind)
					hasErrors = true
				} else {
					fmt.Fprintf(outputWriter, "✅ %s.%s has %s\n", adoption.HostKind, bundle, def.Name)
					ready++
				}
				break
			}
		}
	}
	if ready == 0 {
		fmt.Fprintf(outputWriter, "❌ No %s bundle carries %s\n", adoption.HostKind, adoption.CollectorField)
		hasErrors = true
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}

	fmt.Fprintln(outputWriter, "\n=== Validation Complete ===")
	fmt.Fprintln(outputWriter, "✅ Configuration validated successfully")
	return nil
}

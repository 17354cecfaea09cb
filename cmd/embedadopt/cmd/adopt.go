package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/adopter"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/database"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/lock"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/metrics"
)

var (
	adoptBundle string
	adoptForce  bool
)

var adoptCmd = &cobra.Command{
	Use:   "adopt [host-uuid...]",
	Short: "Adopt embedded blocks into their hosts",
	Long: `Adopt walks each host, collects the identifiers of blocks embedded in
eligible rich text, and attaches every unowned block to the host's collector
field. Hosts that gained references are saved.

Running adopt twice on the same host is safe: the second run finds every
block already owned and writes nothing. Concurrent runs against the same
database are refused through an advisory lock unless --force is given.

Example:
  embedadopt adopt --config embedadopt.yaml 0191f3c2-...
  embedadopt adopt --config embedadopt.yaml --bundle article`,
	RunE: runAdopt,
}

func init() {
	adoptCmd.Flags().StringVarP(&adoptBundle, "bundle", "b", "",
		"Adopt for every host of this bundle")
	adoptCmd.Flags().BoolVar(&adoptForce, "force", false,
		"Run even if another adoption holds the run lock (use with caution)")

	rootCmd.AddCommand(adoptCmd)
}

func runAdopt(cmd *cobra.Command, args []string) error {
	ctx := database.SetupSignalHandlerWithCallback(func(sig os.Signal) {
		fmt.Fprintf(os.Stderr, "\nReceived %s, stopping adoption\n", sig)
	})

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !adoptForce {
		runLock := lock.NewRunLock(a.db.DB, a.db.Dialect, "adopt")
		if err := runLock.AcquireOrFail(ctx); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("another adoption is already running (use --force to override)")
			}
			return fmt.Errorf("failed to acquire run lock: %w", err)
		}
		defer func() {
			if _, err := runLock.ReleaseLock(context.Background()); err != nil {
				a.log.Warnw("Failed to release run lock", "lock", runLock.LockName(), "error", err)
			}
		}()
		a.log.Debugw("Run lock acquired", "lock", runLock.LockName())
	} else {
		a.log.Warn("Skipping run lock (--force flag used)")
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if a.cfg.Metrics.Enabled {
		m = metrics.New()
		engine.SetRecorder(m)
	}

	hosts, err := a.hosts(ctx, args, adoptBundle)
	if err != nil {
		return err
	}

	a.log.Infow("Starting adoption", "hosts", len(hosts), "config", GetConfigFile())

	var rows [][]string
	total, failed := 0, 0
	for _, host := range hosts {
		adopted, err := engine.Adopt(ctx, host)
		if len(adopted) > 0 {
			// Save even after a partial failure so the host lists every
			// block that now claims it.
			if saveErr := a.store.Save(ctx, host); saveErr != nil {
				err = errors.Join(err, fmt.Errorf("save host: %w", saveErr))
			}
		}
		total += len(adopted)

		result := adopter.ResultNoop
		switch {
		case err != nil:
			result = adopter.ResultFailed
			failed++
			a.log.WithHost(host).Errorw("Adoption failed", "error", err)
		case len(adopted) > 0:
			result = adopter.ResultAdopted
		}
		rows = append(rows, []string{host.UUID, host.Bundle, strconv.Itoa(len(adopted)), status(result), strings.Join(adopted, ",")})

		if errors.Is(err, context.Canceled) {
			a.log.Warn("Adoption cancelled by user")
			break
		}
	}

	fmt.Fprintln(outputWriter)
	printHeader("Adoption Complete")
	printTable([]string{"HOST", "BUNDLE", "ADOPTED", "RESULT", "BLOCKS"}, rows)
	fmt.Fprintf(outputWriter, "\nHosts: %d  Blocks adopted: %d  Failed: %d\n", len(hosts), total, failed)

	if m != nil && a.cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("adoption failed for %d hosts", failed)
	}
	return nil
}

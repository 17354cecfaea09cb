package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/adopter"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/database"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/verifier"
)

var (
	verifyBundle string
	verifyMethod string
)

var verifyCmd = &cobra.Command{
	Use:   "verify [host-uuid...]",
	Short: "Check hosts against the adoption invariants",
	Long: `Verify checks that each host's collector field lists every block once
and that every listed block is owned by the host through that field.

Methods:
  structure  collector field checks only (default)
  full       also report embedded blocks still waiting for adoption
  skip       do nothing

Example:
  embedadopt verify --config embedadopt.yaml --bundle article --method full`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyBundle, "bundle", "b", "",
		"Verify every host of this bundle")
	verifyCmd.Flags().StringVarP(&verifyMethod, "method", "m", string(verifier.MethodStructure),
		"Verification method (structure, full, skip)")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	v, err := verifier.NewVerifier(a.store, engine, adopter.OptionsFromConfig(a.cfg.Adoption),
		verifier.VerificationMethod(verifyMethod), a.log)
	if err != nil {
		return err
	}

	hosts, err := a.hosts(ctx, args, verifyBundle)
	if err != nil {
		return err
	}

	stats, verifyErr := v.Verify(ctx, hosts)

	var rows [][]string
	for _, r := range stats.Results {
		if r.OK() {
			rows = append(rows, []string{r.HostUUID, strconv.Itoa(r.BlocksChecked), status("passed"), ""})
			continue
		}
		for _, p := range r.Problems {
			rows = append(rows, []string{r.HostUUID, strconv.Itoa(r.BlocksChecked), status(problemStatus(p.Kind)), p.Detail})
		}
	}

	printHeader("Verification (%s)", stats.Method)
	if len(rows) > 0 {
		printTable([]string{"HOST", "BLOCKS", "STATUS", "DETAIL"}, rows)
	}
	fmt.Fprintf(outputWriter, "\nHosts: %d  Passed: %d  Failed: %d\n",
		stats.HostsVerified, stats.HostsPassed, stats.HostsFailed)

	return verifyErr
}

func problemStatus(kind string) string {
	if kind == verifier.ProblemPending {
		return "pending"
	}
	return "failed"
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/servicegraph/servicegraph-go/fallback"
	"github.com/servicegraph/servicegraph-go/index"
)

func newPruneCommand() *Command {
	pruneCmd := &Command{
		Name:        "prune",
		Description: "Remove inadmissible fallback candidates and write the cleaned catalog",
		FlagSet:     flag.NewFlagSet("prune", flag.ExitOnError),
	}

	servicesFile := pruneCmd.FlagSet.String("services", "", "Capability map file (YAML or JSON)")
	ratePolicy := pruneCmd.FlagSet.String("rate-policy", "", "Fallback rate policy: lte_primary, within_pct, at_least_pct_lower")
	ratePct := pruneCmd.FlagSet.Float64("rate-pct", 0, "Percentage for the pct-based rate policies")
	constraintFit := pruneCmd.FlagSet.Bool("constraint-fit", false, "Require fallback candidates to satisfy effective constraints")
	output := pruneCmd.FlagSet.String("output", "", "Output file for the pruned catalog (defaults to stdout)")

	pruneCmd.Run = func() error {
		files := pruneCmd.FlagSet.Args()
		if len(files) != 1 {
			return fmt.Errorf("expected exactly one catalog file")
		}
		if *servicesFile == "" {
			return fmt.Errorf("pruning requires a capability map (-services)")
		}

		doc, services, err := loadInputs(files[0], *servicesFile)
		if err != nil {
			return err
		}

		result := fallback.PruneNodes(index.Build(doc), services, fallback.Settings{
			RatePolicy:           *ratePolicy,
			RatePct:              *ratePct,
			RequireConstraintFit: *constraintFit,
		})

		for _, removed := range result.Removed {
			fmt.Fprintf(os.Stderr, "removed %s from %s: %s\n", removed.CandidateID, removed.NodeID, removed.Reason)
		}

		encoded, err := json.MarshalIndent(result.Document, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding pruned catalog: %w", err)
		}
		if *output == "" {
			fmt.Println(string(encoded))
			return nil
		}
		if err := os.WriteFile(*output, append(encoded, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing pruned catalog: %w", err)
		}
		return nil
	}

	return pruneCmd
}

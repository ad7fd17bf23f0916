package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/fallback"
	"github.com/servicegraph/servicegraph-go/index"
	"github.com/servicegraph/servicegraph-go/lint"
	"github.com/servicegraph/servicegraph-go/loader"
	"github.com/servicegraph/servicegraph-go/policy"
	"github.com/servicegraph/servicegraph-go/report"
	"github.com/servicegraph/servicegraph-go/store"
)

func newCheckCommand() *Command {
	checkCmd := &Command{
		Name:        "check",
		Description: "Validate a catalog file and report every finding",
		FlagSet:     flag.NewFlagSet("check", flag.ExitOnError),
	}

	servicesFile := checkCmd.FlagSet.String("services", "", "Capability map file (YAML or JSON)")
	policiesFile := checkCmd.FlagSet.String("policies", "", "Dynamic policy rules file (YAML or JSON)")
	selected := checkCmd.FlagSet.String("selected", "", "Comma-separated list of selected button keys")
	format := checkCmd.FlagSet.String("format", "text", "Output format: text or json")
	failOnWarn := checkCmd.FlagSet.Bool("fail-on-warn", false, "Return non-zero exit code when warnings are present")
	strictFallbacks := checkCmd.FlagSet.Bool("strict-fallbacks", false, "Promote node-scoped fallback failures to errors")
	ratePolicy := checkCmd.FlagSet.String("rate-policy", "", "Fallback rate policy: lte_primary, within_pct, at_least_pct_lower")
	ratePct := checkCmd.FlagSet.Float64("rate-pct", 0, "Percentage for the pct-based rate policies")
	constraintFit := checkCmd.FlagSet.Bool("constraint-fit", false, "Require fallback candidates to satisfy effective constraints")
	globalGuard := checkCmd.FlagSet.Bool("global-utility-guard", false, "Enable the document-wide utility-without-base check")
	catalogID := checkCmd.FlagSet.String("id", "", "Catalog id for the report (defaults to the file name)")
	brokers := checkCmd.FlagSet.String("publish-brokers", "", "Comma-separated Kafka brokers to publish the report to")
	topic := checkCmd.FlagSet.String("publish-topic", "catalog-reports", "Kafka topic for published reports")
	cacheAddr := checkCmd.FlagSet.String("cache-addr", "", "Redis address to cache the report under the catalog id")

	checkCmd.Run = func() error {
		files := checkCmd.FlagSet.Args()
		if len(files) != 1 {
			return fmt.Errorf("expected exactly one catalog file")
		}
		path := files[0]

		doc, services, err := loadInputs(path, *servicesFile)
		if err != nil {
			return err
		}
		policies, err := loadPolicies(*policiesFile)
		if err != nil {
			return err
		}

		settings := fallback.Settings{
			RatePolicy:           *ratePolicy,
			RatePct:              *ratePct,
			RequireConstraintFit: *constraintFit,
		}
		if *strictFallbacks {
			settings.Mode = fallback.ModeStrict
		}

		issues := lint.ValidateDocument(doc, lint.Options{
			Services:           services,
			SelectedKeys:       splitCommaList(*selected),
			Policies:           policies,
			GlobalUtilityGuard: *globalGuard,
			Fallbacks:          settings,
		})
		failures := fallback.CollectFailed(index.Build(doc), services, settings)

		id := *catalogID
		if id == "" {
			id = filepath.Base(path)
		}
		built := report.Build(id, issues, nil, failures)

		if err := emitReport(built, *format); err != nil {
			return err
		}
		if err := shipReport(built, *brokers, *topic, *cacheAddr); err != nil {
			return err
		}

		if !built.Clean() || (*failOnWarn && built.Summary.Warnings > 0) {
			return fmt.Errorf("check failed: %d errors, %d warnings", built.Summary.Errors, built.Summary.Warnings)
		}
		return nil
	}

	return checkCmd
}

func loadInputs(catalogPath, servicesPath string) (*servicegraph.Document, servicegraph.ServiceMap, error) {
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading catalog file: %w", err)
	}
	doc, err := loader.LoadDocument(data)
	if err != nil {
		return nil, nil, err
	}

	var services servicegraph.ServiceMap
	if servicesPath != "" {
		data, err := os.ReadFile(servicesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading capability map: %w", err)
		}
		services, err = loader.LoadServices(data)
		if err != nil {
			return nil, nil, err
		}
	}
	return doc, services, nil
}

func loadPolicies(path string) ([]policy.RawRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	var rules []policy.RawRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decoding policy file: %w", err)
	}
	return rules, nil
}

func emitReport(built *report.Report, format string) error {
	switch strings.ToLower(format) {
	case "json":
		encoded, err := json.MarshalIndent(built, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		fmt.Println(string(encoded))
	case "text":
		for _, issue := range built.Issues {
			node := issue.NodeID
			if node == "" {
				node = "-"
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", issue.Severity, issue.Code, node, issue.Message)
		}
		for _, failure := range built.FallbackFailures {
			fmt.Printf("info\tfallback_%s\t%s\tcandidate %q\n", failure.Reason, failure.NodeID, failure.CandidateID)
		}
		fmt.Printf("%d errors, %d warnings, %d findings\n",
			built.Summary.Errors, built.Summary.Warnings, built.Summary.Total)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	return nil
}

func shipReport(built *report.Report, brokers, topic, cacheAddr string) error {
	ctx := context.Background()

	if brokers != "" {
		logger, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()

		publisher := report.NewKafkaPublisher(&report.KafkaPublisherConfig{
			Brokers: splitCommaList(brokers),
			Topic:   topic,
		}, logger)
		defer publisher.Close()

		if err := publisher.Publish(ctx, built); err != nil {
			return err
		}
	}

	if cacheAddr != "" {
		cache := store.NewRedisReportCache(&store.RedisReportCacheConfig{Addr: cacheAddr}, nil)
		defer cache.Close()
		if err := cache.Put(ctx, built.CatalogID, built); err != nil {
			return err
		}
	}
	return nil
}

func splitCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

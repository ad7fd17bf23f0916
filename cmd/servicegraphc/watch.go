package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/lint"
	"github.com/servicegraph/servicegraph-go/loader"
)

func newWatchCommand() *Command {
	watchCmd := &Command{
		Name:        "watch",
		Description: "Revalidate a catalog file on every change until interrupted",
		FlagSet:     flag.NewFlagSet("watch", flag.ExitOnError),
	}

	servicesFile := watchCmd.FlagSet.String("services", "", "Capability map file (YAML or JSON)")
	selected := watchCmd.FlagSet.String("selected", "", "Comma-separated list of selected button keys")
	globalGuard := watchCmd.FlagSet.Bool("global-utility-guard", false, "Enable the document-wide utility-without-base check")

	watchCmd.Run = func() error {
		files := watchCmd.FlagSet.Args()
		if len(files) != 1 {
			return fmt.Errorf("expected exactly one catalog file")
		}
		path := files[0]

		var services servicegraph.ServiceMap
		if *servicesFile != "" {
			data, err := os.ReadFile(*servicesFile)
			if err != nil {
				return fmt.Errorf("reading capability map: %w", err)
			}
			services, err = loader.LoadServices(data)
			if err != nil {
				return err
			}
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()

		opts := lint.Options{
			Services:           services,
			SelectedKeys:       splitCommaList(*selected),
			GlobalUtilityGuard: *globalGuard,
		}

		watcher, err := loader.NewWatcher(path, opts, func(doc *servicegraph.Document, issues []lint.Issue) {
			for _, issue := range issues {
				fmt.Printf("%s\t%s\t%s\t%s\n", issue.Severity, issue.Code, issue.NodeID, issue.Message)
			}
		}, logger)
		if err != nil {
			return err
		}
		defer watcher.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	return watchCmd
}

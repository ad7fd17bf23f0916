package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/servicegraph/servicegraph-go/store"
)

func newStoreCommand() *Command {
	storeCmd := &Command{
		Name:        "store",
		Description: "Push a catalog file to PostgreSQL storage, or list stored catalogs",
		FlagSet:     flag.NewFlagSet("store", flag.ExitOnError),
	}

	dsn := storeCmd.FlagSet.String("dsn", "", "PostgreSQL DSN")
	migrate := storeCmd.FlagSet.Bool("migrate", false, "Run schema migrations before storing")
	name := storeCmd.FlagSet.String("name", "", "Catalog name")
	version := storeCmd.FlagSet.String("version", "", "Catalog version")
	labels := storeCmd.FlagSet.String("labels", "", "Comma-separated labels")
	createdBy := storeCmd.FlagSet.String("created-by", "", "Author recorded on the stored catalog")
	list := storeCmd.FlagSet.Bool("list", false, "List stored catalogs instead of pushing")

	storeCmd.Run = func() error {
		if *dsn == "" {
			return fmt.Errorf("a PostgreSQL DSN is required (-dsn)")
		}

		logger, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()

		ctx := context.Background()
		storage, err := store.NewPostgresCatalogStorage(ctx, &store.PostgresStorageConfig{
			DSN:         *dsn,
			AutoMigrate: *migrate,
		}, logger)
		if err != nil {
			return err
		}
		defer storage.Close()

		if *list {
			catalogs, err := storage.ListCatalogs(ctx, nil)
			if err != nil {
				return err
			}
			for _, meta := range catalogs {
				fmt.Printf("%s\t%s\t%d tags\t%d fields\t%s\n",
					meta.Name, meta.Version, meta.TagCount, meta.FieldCount,
					meta.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		}

		files := storeCmd.FlagSet.Args()
		if len(files) != 1 {
			return fmt.Errorf("expected exactly one catalog file")
		}
		if *name == "" || *version == "" {
			return fmt.Errorf("pushing requires -name and -version")
		}

		doc, _, err := loadInputs(files[0], "")
		if err != nil {
			return err
		}

		catalog := &store.StoredCatalog{
			Name:      *name,
			Version:   *version,
			Document:  doc,
			CreatedBy: *createdBy,
			Labels:    splitCommaList(*labels),
		}
		if err := storage.StoreCatalog(ctx, catalog); err != nil {
			return err
		}
		fmt.Printf("stored %s:%s as %s\n", catalog.Name, catalog.Version, catalog.ID)
		return nil
	}

	return storeCmd
}

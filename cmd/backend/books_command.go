package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blind-book-reader/internal/catalog"
)

func newBooksCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "Print the book catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			store, err := catalog.Open(cmd.Context(), catalog.Options{
				Backend:     cfg.Storage.CatalogBackend,
				Path:        cfg.Storage.CatalogPath,
				DatabaseURL: cfg.Storage.DatabaseURL,
				Logger:      zap.NewNop(),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return printBooks(cmd.OutOrStdout(), records)
		},
	}
}

func printBooks(out io.Writer, records []catalog.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No books uploaded")
		return err
	}
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		rows = append(rows, []string{strconv.Itoa(i + 1), rec.Title, rec.Author, rec.File})
	}
	_, err := fmt.Fprintln(out, renderTable(
		[]string{"#", "Title", "Author", "File"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	return err
}

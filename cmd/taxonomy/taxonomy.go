// Package taxonomy implements the taxonomy subcommand for managing the
// species reference table.
package taxonomy

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jiangyuyi/feather-trace/internal/conf"
	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/taxonomy"
)

// Command creates the taxonomy subcommand and its children.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Manage the species reference table",
	}

	cmd.AddCommand(importCommand(settings), countCommand(settings))
	return cmd
}

func importCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "import [spreadsheet.xlsx]",
		Short: "Import species from an IOC world bird list spreadsheet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settings.Taxonomy.IOCSpreadsheetPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no spreadsheet given and taxonomy.iocspreadsheetpath is not set")
			}

			ds, err := openDatastore(settings)
			if err != nil {
				return err
			}
			defer ds.Close()

			inserted, err := taxonomy.ImportFromExcel(ds, path)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d new species from %s\n", inserted, path)
			return nil
		},
	}
}

func countCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the number of species in the reference table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDatastore(settings)
			if err != nil {
				return err
			}
			defer ds.Close()

			count, err := ds.CountTaxa()
			if err != nil {
				return err
			}
			fmt.Printf("%d species\n", count)
			return nil
		},
	}
}

func openDatastore(settings *conf.Settings) (datastore.Interface, error) {
	ds := datastore.New(settings)
	if ds == nil {
		return nil, fmt.Errorf("no datastore enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return nil, err
	}
	return ds, nil
}

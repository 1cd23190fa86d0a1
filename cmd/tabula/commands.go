package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabula/pkg/catalog"
	"github.com/ajitpratap0/tabula/pkg/compression"
	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/export"
	"github.com/ajitpratap0/tabula/pkg/models"
)

func (a *app) inferCommand() *cobra.Command {
	var input string
	var withRows bool

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer a column schema from records",
		Long: `Infer reads records from --input (a batch document, a record file or a
directory of record files) or from the configured source and prints the
proposed columns with the inference report.

Example:
  tabula infer --input exports/ --rows`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			batch, err := a.loadBatch(ctx, input)
			if err != nil {
				return err
			}
			columns, report := a.engine.Builder.Build(batch)

			out := map[string]interface{}{
				"columns": columns,
				"report":  report,
			}
			if withRows {
				out["rows"] = a.engine.Populator.Populate(batch, columns)
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Record file or directory (overrides source config)")
	cmd.Flags().BoolVar(&withRows, "rows", false, "Also print the populated rows")
	return cmd
}

func (a *app) qualityCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Score the quality of records against their inferred schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			batch, err := a.loadBatch(ctx, input)
			if err != nil {
				return err
			}
			columns, _ := a.engine.Builder.Build(batch)
			return printJSON(a.engine.Quality.Score(batch, columns))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Record file or directory (overrides source config)")
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	var input, table, description string
	var addColumns bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import records into a table, creating it if needed",
		Long: `Import infers columns for the records, commits them to the table and
stores one row per record. A table that already has columns keeps them
unless --add-columns is set, in which case new fields are appended.

Example:
  tabula import --table posts --input batch.json --add-columns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			batch, err := a.loadBatch(ctx, input)
			if err != nil {
				return err
			}

			svc, st, err := a.openCatalog(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			tbl, err := findTable(ctx, svc, table)
			if errors.IsType(err, errors.ErrorTypeNotFound) {
				tbl, err = svc.CreateTable(ctx, table, description)
			}
			if err != nil {
				return err
			}

			result, err := svc.ImportSources(ctx, tbl.ID, batch, catalog.ImportOptions{AddNewColumns: addColumns})
			if err != nil {
				return err
			}
			a.log.Info("import finished",
				zap.String("table", tbl.Name),
				zap.Int("rows", result.RowsCreated),
				zap.Float64("quality", result.Quality.OverallScore))
			return printJSON(map[string]interface{}{
				"table":  tbl,
				"result": result,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Record file or directory (overrides source config)")
	cmd.Flags().StringVarP(&table, "table", "t", "", "Table ID or name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Description for a newly created table")
	cmd.Flags().BoolVar(&addColumns, "add-columns", false, "Append newly discovered fields to an existing table")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func (a *app) tablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables and their columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			svc, st, err := a.openCatalog(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			tables, err := svc.ListTables(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tCOLUMN ID\tCOLUMN\tTYPE\tREQUIRED")
			for _, t := range tables {
				cols, err := svc.Columns(ctx, t.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s (%s)\t\t\t\t\n", t.Name, t.ID)
				for _, c := range cols {
					fmt.Fprintf(w, "\t%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Type, c.Required)
				}
			}
			return w.Flush()
		},
	}
}

func (a *app) validateTypeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-type COLUMN_ID TYPE",
		Short: "Check whether a column's stored values allow a type change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			proposed, err := models.ParseColumnType(args[1])
			if err != nil {
				return err
			}
			svc, st, err := a.openCatalog(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := svc.ValidateColumnType(ctx, args[0], proposed)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func (a *app) setTypeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-type COLUMN_ID TYPE",
		Short: "Change a column's type when its stored values allow it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			proposed, err := models.ParseColumnType(args[1])
			if err != nil {
				return err
			}
			svc, st, err := a.openCatalog(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			col, result, err := svc.ChangeColumnType(ctx, args[0], proposed)
			if err != nil {
				if errors.IsType(err, errors.ErrorTypeConflict) {
					_ = printJSON(result)
				}
				return err
			}
			return printJSON(map[string]interface{}{
				"column": col,
				"result": result,
			})
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export TABLE",
		Short: "Export a table as CSV, JSON or JSON lines",
		Long: `Export writes the table's columns and rows to --output, or stdout.
A compression suffix on the output path (.gz, .zst, .lz4, .sz, .s2)
compresses the file.

Example:
  tabula export posts --format csv --output posts.csv.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, st, err := a.openCatalog(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			tbl, err := findTable(ctx, svc, args[0])
			if err != nil {
				return err
			}

			if output == "" {
				return svc.Export(ctx, tbl.ID, f, os.Stdout)
			}
			return writeFile(output, func(w io.Writer) error {
				return svc.Export(ctx, tbl.ID, f, w)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format (csv, json, jsonl)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default stdout)")
	return cmd
}

// findTable resolves ref as a table ID, then as a table name.
func findTable(ctx context.Context, svc *catalog.Service, ref string) (*models.Table, error) {
	if t, err := svc.GetTable(ctx, ref); err == nil {
		return t, nil
	} else if !errors.IsType(err, errors.ErrorTypeNotFound) {
		return nil, err
	}

	tables, err := svc.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Name == ref {
			return t, nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeNotFound, "table %q not found", ref)
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	defer file.Close()

	w, err := compression.NewWriter(file, compression.FromPath(path), compression.Default)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return file.Close()
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/reportsql/pkg/cursor"
	"github.com/Sternrassler/reportsql/pkg/session"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var queryMaxRows int

var queryCmd = &cobra.Command{
	Use:   "query SQL",
	Short: "Run a query and print the rows as a table",
	Long: `Run a SELECT or WITH statement and print its rows.

The statement may be given as arguments or, with "-", read from stdin.

Examples:
  reportsql query "SELECT employee_id, last_name FROM hr.employees"
  reportsql query --max-rows 10 "SELECT * FROM all_tables"
  cat report.sql | reportsql query -`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sql := strings.Join(args, " ")
		if sql == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			sql = string(data)
		}

		s, err := session.FromConfig(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		cur, err := s.Query(ctx, sql)
		if err != nil {
			return err
		}
		defer cur.Close()

		n, err := renderTable(ctx, cmd.OutOrStdout(), cur, queryMaxRows)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d row(s)\n", n)
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryMaxRows, "max-rows", "n", 0, "Stop after this many rows (0 for all)")
}

// renderTable drains cur into a table on w and returns the number of rows
// written. Columns are taken after the rows are read since later pages may
// add columns.
func renderTable(ctx context.Context, w io.Writer, cur *cursor.Cursor, maxRows int) (int, error) {
	var rows [][]string
	for maxRows <= 0 || len(rows) < maxRows {
		ok, err := cur.Next(ctx)
		if err != nil {
			return len(rows), err
		}
		if !ok {
			break
		}
		values, err := cur.Values()
		if err != nil {
			return len(rows), err
		}
		rows = append(rows, values)
	}

	columns := cur.Columns()
	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, r := range rows {
		// Rows read before a later page added columns are shorter.
		for len(r) < len(columns) {
			r = append(r, "")
		}
		table.Append(r)
	}
	table.Render()
	return len(rows), nil
}

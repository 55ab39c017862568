package main

import (
	"strconv"

	"github.com/Sternrassler/reportsql/pkg/cache"
	"github.com/Sternrassler/reportsql/pkg/catalog"
	"github.com/Sternrassler/reportsql/pkg/session"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	catalogSchema  string
	catalogTable   string
	catalogTypes   []string
	catalogRefresh bool
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables and views",
	Long: `List tables and views from the data dictionary.

Results are cached in Redis when --redis-url (or REDIS_URL) is set.

Examples:
  reportsql tables --schema HR
  reportsql tables --schema HR --table EMP% --type VIEW
  reportsql tables --schema HR --refresh`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, closeFn, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		tables, err := cat.Tables(cmd.Context(), catalog.TableFilter{
			Schema: catalogSchema,
			Table:  catalogTable,
			Types:  catalogTypes,
		})
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"SCHEMA", "NAME", "TYPE"})
		table.SetAutoFormatHeaders(false)
		for _, t := range tables {
			table.Append([]string{t.Schema, t.Name, t.Type})
		}
		table.Render()
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List table columns",
	Long: `List the columns of the tables matching --schema and --table.

Examples:
  reportsql columns --schema HR --table EMPLOYEES`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, closeFn, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		columns, err := cat.Columns(cmd.Context(), catalogSchema, catalogTable)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"TABLE", "#", "COLUMN", "TYPE", "SIZE", "NULLABLE"})
		table.SetAutoFormatHeaders(false)
		for _, c := range columns {
			table.Append([]string{
				c.Schema + "." + c.Table,
				strconv.FormatInt(c.Position, 10),
				c.Name,
				c.Type,
				strconv.FormatInt(c.Size, 10),
				strconv.FormatBool(c.Nullable),
			})
		}
		table.Render()
		return nil
	},
}

var schemasCmd = &cobra.Command{
	Use:   "schemas [PATTERN]",
	Short: "List schemas",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, closeFn, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		var pattern string
		if len(args) == 1 {
			pattern = args[0]
		}
		names, err := cat.Schemas(cmd.Context(), pattern)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"SCHEMA"})
		table.SetAutoFormatHeaders(false)
		for _, n := range names {
			table.Append([]string{n})
		}
		table.Render()
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{tablesCmd, columnsCmd, schemasCmd} {
		c.Flags().BoolVar(&catalogRefresh, "refresh", false, "Drop cached catalog entries for the endpoint first")
	}
	for _, c := range []*cobra.Command{tablesCmd, columnsCmd} {
		c.Flags().StringVarP(&catalogSchema, "schema", "s", "", "Schema LIKE pattern")
		c.Flags().StringVarP(&catalogTable, "table", "t", "", "Table LIKE pattern")
	}
	tablesCmd.Flags().StringSliceVar(&catalogTypes, "type", nil, "Object types (TABLE, VIEW)")
}

// openCatalog builds the session, cache and catalog for a catalog command.
// The returned func releases the Redis connection.
func openCatalog(cmd *cobra.Command) (*catalog.Catalog, func(), error) {
	s, err := session.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := newRedis(cmd.Context(), cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Catalog cache unavailable, querying directly")
		redisClient = nil
	}
	closeFn := func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}

	if catalogRefresh && redisClient != nil {
		n, err := cache.NewManager(redisClient).Purge(cmd.Context(), s.Endpoint())
		if err != nil {
			log.Warn().Err(err).Msg("Catalog cache purge failed")
		} else {
			log.Info().Int("keys", n).Msg("Catalog cache purged")
		}
	}

	cat, err := newCatalog(s, redisClient)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cat, closeFn, nil
}

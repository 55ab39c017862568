// Command reportsql runs SQL against a report service from the command line
// and can serve queries over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/reportsql/pkg/cache"
	"github.com/Sternrassler/reportsql/pkg/catalog"
	"github.com/Sternrassler/reportsql/pkg/config"
	"github.com/Sternrassler/reportsql/pkg/logging"
	"github.com/Sternrassler/reportsql/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "reportsql",
	Short: "Run SQL through a report service",
	Long: `reportsql sends SQL statements to a SOAP report service (runReport),
pages through the results and prints them.

Connection settings come from REPORTSQL_* environment variables and can be
overridden with flags.

Examples:
  reportsql query "SELECT * FROM hr.employees"
  reportsql tables --schema HR --type TABLE
  reportsql columns --schema HR --table EMPLOYEES
  reportsql serve --port 8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyFlags(cmd)
		logging.Setup(cfg.LoggingConfig())
		return nil
	},
}

func init() {
	cfg = config.Load()

	flags := rootCmd.PersistentFlags()
	flags.String("endpoint", cfg.Endpoint, "Report service URL")
	flags.StringP("user", "u", cfg.Username, "Report service user")
	flags.String("password", "", "Report service password (default from "+config.EnvPassword+")")
	flags.String("report-path", cfg.ReportPath, "Path of the report that executes the SQL")
	flags.Int("page-size", cfg.PageSize, "Rows per page, 0 disables paging")
	flags.String("redis-url", cfg.RedisURL, "Redis address for the catalog cache")
	flags.String("log-level", string(cfg.LogLevel), "Log level (debug, info, warn, error)")
	flags.Bool("pretty", cfg.LogPretty, "Human-readable log output")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(serveCmd)
}

// applyFlags copies explicitly set flags over the environment values.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("user") {
		cfg.Username, _ = flags.GetString("user")
	}
	if flags.Changed("password") {
		cfg.Password, _ = flags.GetString("password")
	}
	if flags.Changed("report-path") {
		cfg.ReportPath, _ = flags.GetString("report-path")
	}
	if flags.Changed("page-size") {
		cfg.PageSize, _ = flags.GetInt("page-size")
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL, _ = flags.GetString("redis-url")
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.LogLevel = logging.LogLevel(level)
	}
	if flags.Changed("pretty") {
		cfg.LogPretty, _ = flags.GetBool("pretty")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRedis connects to the catalog cache. It returns nil when no Redis is
// configured.
func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	var opts *redis.Options
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: url}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return client, nil
}

// newCatalog builds a catalog over s, cached in Redis when one is given.
func newCatalog(s *session.Session, redisClient *redis.Client) (*catalog.Catalog, error) {
	catCfg := catalog.Config{Endpoint: s.Endpoint(), TTL: cfg.CacheTTL}
	if redisClient != nil {
		catCfg.Store = cache.NewManager(redisClient)
	}
	return catalog.New(s, catCfg)
}

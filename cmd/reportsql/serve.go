package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/reportsql/pkg/client"
	"github.com/Sternrassler/reportsql/pkg/cursor"
	"github.com/Sternrassler/reportsql/pkg/metrics"
	"github.com/Sternrassler/reportsql/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	defaultMaxRows = 1000
	queryTimeout   = 5 * time.Minute
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries over HTTP",
	Long: `Start an HTTP server with these endpoints:

  GET /health               liveness
  GET /ready                readiness (Redis reachable, if configured)
  GET /metrics              Prometheus metrics
  GET|POST /query?sql=...   rows as JSON (max_rows limits the result)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := session.FromConfig(cfg)
		if err != nil {
			return err
		}

		redisClient, err := newRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		if redisClient != nil {
			defer redisClient.Close()
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/health", healthHandler)
		mux.HandleFunc("/ready", readyHandler(redisClient))
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/query", queryHandler(s))

		addr := ":" + servePort
		log.Info().
			Str("addr", addr).
			Str("endpoint", cfg.Endpoint).
			Int("page_size", cfg.PageSize).
			Msg("Starting reportsql server")

		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", getEnv("PORT", "8080"), "Listen port")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// QueryResponse is the JSON body returned by /query.
type QueryResponse struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// queryError is the JSON body of a failed /query.
type queryError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  string `json:"code,omitempty"`
}

func queryHandler(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		sql := r.FormValue("sql")
		if sql == "" {
			writeJSON(w, http.StatusBadRequest, queryError{Error: "sql parameter is required"})
			return
		}

		maxRows := defaultMaxRows
		if v := r.FormValue("max_rows"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, queryError{Error: "max_rows must be a positive integer"})
				return
			}
			maxRows = n
		}

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		resp, err := runQuery(ctx, s, sql, maxRows)
		if err != nil {
			status, body := errorResponse(err)
			log.Warn().Err(err).Int("status", status).Msg("Query failed")
			writeJSON(w, status, body)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func runQuery(ctx context.Context, s *session.Session, sql string, maxRows int) (QueryResponse, error) {
	cur, err := s.Query(ctx, sql)
	if err != nil {
		return QueryResponse{}, err
	}
	defer cur.Close()

	resp := QueryResponse{Rows: [][]string{}}
	for {
		ok, err := cur.Next(ctx)
		if err != nil {
			return QueryResponse{}, err
		}
		if !ok {
			break
		}
		if len(resp.Rows) == maxRows {
			resp.Truncated = true
			break
		}
		values, err := cur.Values()
		if err != nil {
			return QueryResponse{}, err
		}
		resp.Rows = append(resp.Rows, values)
	}

	resp.Columns = cur.Columns()
	for i, r := range resp.Rows {
		for len(r) < len(resp.Columns) {
			r = append(r, "")
		}
		resp.Rows[i] = r
	}
	return resp, nil
}

// errorResponse maps a query failure to an HTTP status and body.
func errorResponse(err error) (int, queryError) {
	body := queryError{Error: err.Error()}

	var ce *client.Error
	var ue *cursor.UsageError
	switch {
	case errors.Is(err, session.ErrReadOnly), errors.As(err, &ue):
		return http.StatusBadRequest, body
	case errors.As(err, &ce):
		body.Kind = string(ce.Kind)
		body.Code = ce.Code
		if ce.Kind == client.KindDomain {
			return http.StatusUnprocessableEntity, body
		}
		return http.StatusBadGateway, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusBadGateway, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

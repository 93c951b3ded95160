package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xenlk/xenlk/internal/logger"
	"github.com/xenlk/xenlk/pkg/harness"
	"github.com/xenlk/xenlk/pkg/lock"
	"github.com/xenlk/xenlk/pkg/metrics"
)

var (
	soakOwner  string
	soakListen string
)

var soakCmd = &cobra.Command{
	Use:     "soak <file>",
	Aliases: []string{"r"},
	Short:   "Run the randomized lock soak loop",
	Long: `Run the randomized soak loop against the file until interrupted: sleep a
random interval, take a random reader or writer lock, append a counter
record when writing, release. Run several of these concurrently (same file,
different hosts if possible), then check the result with "xenlk verify".

Each run gets a fresh uuid owner unless --owner is given, so restarting
never collides with a previous instance's lock names.

With metrics enabled, an HTTP endpoint serves /metrics, /healthz and /locks
while the loop runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runSoak,
}

func init() {
	soakCmd.Flags().StringVar(&soakOwner, "owner", "", "owner id (default: a fresh uuid)")
	soakCmd.Flags().StringVar(&soakListen, "listen", "", "override the metrics listen address")
}

func runSoak(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup()
	if err != nil {
		return err
	}
	target := args[0]

	owner := soakOwner
	if owner == "" {
		owner = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		listen := cfg.Metrics.Listen
		if soakListen != "" {
			listen = soakListen
		}
		srv := &http.Server{Addr: listen, Handler: soakRouter(target)}
		go func() {
			logger.Info("observability endpoint listening", "addr", listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("observability endpoint failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return harness.Soak(ctx, l, target, owner, cfg.Soak.ReadonlyBias)
}

// soakRouter exposes the soak run's observability surface.
func soakRouter(target string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/locks", func(w http.ResponseWriter, _ *http.Request) {
		holders, err := lock.Holders(target)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type holderJSON struct {
			Host     string `json:"host"`
			Owner    string `json:"owner"`
			Readonly bool   `json:"readonly"`
			AgeSecs  int64  `json:"age_seconds"`
		}
		out := make([]holderJSON, 0, len(holders))
		for _, h := range holders {
			out = append(out, holderJSON{
				Host:     h.Host,
				Owner:    h.Owner,
				Readonly: h.Readonly,
				AgeSecs:  int64(h.Age.Seconds()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	return r
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/procurewatch/riskengine/internal/features"
	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/store"
	"github.com/procurewatch/riskengine/internal/views"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the feature and risk API for the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *engineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/features/meta", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"engine_version": features.EngineVersion,
			"count":          features.FeatureCount(),
			"order":          features.CategoryOrder(),
			"categories":     features.Categories(),
		})
	})

	r.Get("/api/features/{id}", func(w http.ResponseWriter, r *http.Request) {
		vec, err := extractCached(r.Context(), env, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, vec)
	})

	r.Post("/api/features/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if len(req.IDs) == 0 {
			http.Error(w, `{"error":"ids is required"}`, http.StatusBadRequest)
			return
		}

		res, err := env.Extractor.ExtractBatch(r.Context(), req.IDs, batchConfig())
		if err != nil {
			writeError(w, err)
			return
		}

		out := struct {
			Vectors []*model.FeatureVector `json:"vectors"`
			Errors  []batchError           `json:"errors,omitempty"`
		}{Vectors: res.Vectors}
		for _, ee := range res.Errors {
			out.Errors = append(out.Errors, batchError{TenderID: ee.TenderID, Error: ee.Err.Error()})
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/api/score/{id}", func(w http.ResponseWriter, r *http.Request) {
		rs, err := env.Aggregator.Score(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rs)
	})

	r.Post("/api/views/refresh", func(w http.ResponseWriter, r *http.Request) {
		view := r.URL.Query().Get("view")
		var results []*model.RefreshResult
		var err error
		if view != "" {
			var res *model.RefreshResult
			res, err = env.Views.Refresh(r.Context(), view)
			results = append(results, res)
		} else {
			results, err = env.Views.RefreshAll(r.Context())
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	r.Get("/api/flagged", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := views.FlaggedFilter{
			Severity:    model.Severity(q.Get("severity")),
			Institution: q.Get("institution"),
			Winner:      q.Get("winner"),
			Limit:       atoiOr(q.Get("limit"), 0),
			Offset:      atoiOr(q.Get("offset"), 0),
		}
		out, err := env.Views.FlaggedTenders(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		refreshedAt, err := env.Views.LastRefreshed(r.Context(), views.ViewFlaggedTenders)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tenders":           out,
			"last_refreshed_at": refreshedAt,
		})
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := env.Views.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		refreshedAt, err := env.Views.LastRefreshed(r.Context(), views.ViewCorruptionStats)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":             stats,
			"last_refreshed_at": refreshedAt,
		})
	})

	return r
}

type batchError struct {
	TenderID string `json:"tender_id"`
	Error    string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case eris.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case eris.Is(err, views.ErrRefreshBusy):
		status = http.StatusConflict
	case eris.Is(err, views.ErrUnknownView):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

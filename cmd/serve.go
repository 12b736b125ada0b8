package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/curator-cli/internal/model"
	"github.com/sells-group/curator-cli/internal/pipeline"
	"github.com/sells-group/curator-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the version catalog and run trigger over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		events, err := openEventStore(ctx)
		if err != nil {
			return err
		}
		defer events.Close()

		versions, err := openVersionStore(ctx)
		if err != nil {
			return err
		}
		defer versions.Close()
		if err := versions.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate version store")
		}

		api := &apiServer{
			versions: versions,
			pipeline: pipeline.New(events, versions, newLineage()),
			defaults: defaultRunParams(),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	versions store.VersionStore
	pipeline *pipeline.Pipeline
	defaults model.RunParams
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/versions", s.handleListVersions)
		r.Get("/versions/{id}", s.handleGetVersion)
		r.Get("/versions/{id}/accepted.jsonl", s.handleAccepted)
		r.Get("/versions/{id}/disputed.log", s.handleDisputed)
		r.Post("/runs", s.handleRun)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *apiServer) handleListVersions(w http.ResponseWriter, r *http.Request) {
	metas, err := s.versions.List(r.Context())
	if err != nil {
		zap.L().Error("api: list versions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list versions failed")
		return
	}
	if metas == nil {
		metas = []model.Meta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *apiServer) getVersion(w http.ResponseWriter, r *http.Request) *model.DatasetVersion {
	v, err := s.versions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrVersionNotFound) {
			writeError(w, http.StatusNotFound, "version not found")
		} else {
			zap.L().Error("api: get version", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get version failed")
		}
		return nil
	}
	return v
}

func (s *apiServer) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	if v := s.getVersion(w, r); v != nil {
		writeJSON(w, http.StatusOK, v.Meta())
	}
}

func (s *apiServer) handleAccepted(w http.ResponseWriter, r *http.Request) {
	if v := s.getVersion(w, r); v != nil {
		w.Header().Set("Content-Type", "application/jsonl")
		_, _ = w.Write(v.AcceptedJSONL())
	}
}

func (s *apiServer) handleDisputed(w http.ResponseWriter, r *http.Request) {
	if v := s.getVersion(w, r); v != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(v.DisputedLog())
	}
}

type runRequest struct {
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	WindowStart         string   `json:"window_start,omitempty"`
	WindowEnd           string   `json:"window_end,omitempty"`
	WindowField         string   `json:"window_field,omitempty"`
	EvaluationCutoff    string   `json:"evaluation_cutoff,omitempty"`
	VersionID           string   `json:"version_id,omitempty"`
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := s.defaults
	if req.ConfidenceThreshold != nil {
		params.ConfidenceThreshold = *req.ConfidenceThreshold
	}
	if req.WindowField != "" {
		params.WindowField = model.WindowField(req.WindowField)
	}
	params.VersionID = req.VersionID

	var err error
	if params.EvaluationCutoff, err = parseTimeFlag(req.EvaluationCutoff); err != nil {
		writeError(w, http.StatusBadRequest, "invalid evaluation_cutoff")
		return
	}
	if params.Window, err = parseWindowFlags(req.WindowStart, req.WindowEnd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid time window")
		return
	}

	result, err := s.pipeline.Run(r.Context(), params)
	if err != nil {
		if eris.Is(err, store.ErrVersionCollision) {
			writeError(w, http.StatusConflict, "version id already exists with different content")
			return
		}
		zap.L().Error("api: run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/rates"
	"github.com/raterudder/energyrates/pkg/syncer"
)

// Server handles the HTTP API for querying and syncing energy rates.
type Server struct {
	rates  *rates.Service
	syncer *syncer.Syncer

	listenAddr     string
	dashboardProxy string
	httpServer     *http.Server
	metricsHandler http.Handler

	adminEmails   []string
	oidcVerifiers map[string]tokenVerifier
	bypassAuth    bool
	serverName    string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(svc *rates.Service, sy *syncer.Syncer) *Server {
	srv := &Server{
		rates:          svc,
		syncer:         sy,
		serverName:     "energyrates",
		metricsHandler: promhttp.Handler(),
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	dashboardProxy := lflag.String("dashboard-proxy", "", "Address of the dashboard dev server (e.g. http://localhost:5173)")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to trigger syncs")
	oidcAudience := lflag.String("oidc-audience", "", "audience to validate sync id tokens against")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.dashboardProxy = *dashboardProxy
		if *adminEmails != "" {
			srv.adminEmails = strings.Split(*adminEmails, ",")
			for i, email := range srv.adminEmails {
				srv.adminEmails[i] = strings.TrimSpace(email)
			}
		}
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.oidcVerifiers = map[string]tokenVerifier{
				"google": oidcTokenVerifier(provider.Verifier(&oidc.Config{ClientID: *oidcAudience})),
			}
		}

		// local development against the dashboard without any auth configured
		if srv.dashboardProxy != "" && len(srv.oidcVerifiers) == 0 && len(srv.adminEmails) == 0 {
			srv.bypassAuth = true
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/v1/energy/electricity", s.handleGetElectricityRates)
	apiMux.HandleFunc("GET /api/v1/energy/gas", s.handleGetGasRates)
	apiMux.HandleFunc("GET /api/v1/energy/available-days", s.handleGetAvailableDays)
	apiMux.Handle("POST /api/v1/energy/sync", s.adminMiddleware(http.HandlerFunc(s.handleSync)))

	mux := http.NewServeMux()
	mux.Handle("/api/", apiMux)

	// the dashboard is served separately in production
	if s.dashboardProxy != "" {
		u, err := url.Parse(s.dashboardProxy)
		if err != nil {
			panic(fmt.Errorf("invalid dashboard-proxy url (%s): %w", s.dashboardProxy, err))
		}
		mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
	}
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(s.logMiddleware(mux))))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// failureResponse is the body of every unsuccessful API response.
type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, failureResponse{Message: msg}, code)
}

// writeJSONFailure includes the cause of an internal failure in the body.
func writeJSONFailure(w http.ResponseWriter, msg string, err error, code int) {
	writeJSON(w, failureResponse{Message: msg, Error: err.Error()}, code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

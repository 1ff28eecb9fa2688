package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/problem-portal/internal/config"
	"github.com/psds-microservice/problem-portal/internal/handler"
	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/router"
	"github.com/psds-microservice/problem-portal/internal/service"
)

// API is the HTTP server (api mode).
type API struct {
	cfg     *config.Config
	log     *logger.Logger
	deps    *Deps
	httpSrv *http.Server
}

func NewAPI(ctx context.Context, cfg *config.Config, log *logger.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	deps, err := Build(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	svc := service.NewPortalService(deps.Safe, deps.Choices, deps.Producer)
	h := router.New(handler.NewProblemHandler(svc, cfg.DedupDefault), cfg.CORSOrigins, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &API{cfg: cfg, log: log, deps: deps, httpSrv: httpSrv}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening",
		"addr", a.httpSrv.Addr,
		"collaborator", a.cfg.Collaborator,
		"choice_cache", a.cfg.ChoiceCache,
		"events", a.deps.Producer.Enabled(),
		"swagger", base+"/swagger",
		"api", base+"/api/v1/",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = a.deps.Close()
		return fmt.Errorf("http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return a.deps.Close()
}

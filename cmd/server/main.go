package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formbuilder-go/internal/airtable"
	"formbuilder-go/internal/api"
	"formbuilder-go/internal/common"
	"formbuilder-go/internal/config"
	"formbuilder-go/internal/service"
	"formbuilder-go/internal/state"
	"formbuilder-go/internal/storage"
	"formbuilder-go/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		common.Logger().Error("server: stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	common.SetLevel(cfg.LogLevel)
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	// Initialize Services
	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("storage: ready", "driver", store.Driver())

	records := airtable.NewClient(airtable.Config{
		BaseURL:   cfg.Airtable.APIURL,
		APIKey:    cfg.Airtable.APIKey,
		BaseID:    cfg.Airtable.BaseID,
		TableName: cfg.Airtable.TableName,
		Timeout:   cfg.Airtable.Timeout,
	})
	if !cfg.Airtable.SyncEnabled() {
		logger.Warn("airtable: sync disabled, responses are stored locally only")
	}
	if !cfg.Airtable.OAuthEnabled() {
		logger.Warn("airtable: oauth disabled, /auth/airtable/start will fail")
	}
	oauth := airtable.NewOAuth(airtable.OAuthConfig{
		ClientID:     cfg.Airtable.ClientID,
		ClientSecret: cfg.Airtable.ClientSecret,
		RedirectURI:  cfg.Airtable.RedirectURI,
		Timeout:      cfg.Airtable.Timeout,
	})

	formService := service.NewFormService(store, records, service.FormOptions{
		DefaultFormID:      cfg.DefaultFormID,
		OwnerID:            cfg.OwnerID,
		AirtableBaseID:     cfg.Airtable.BaseID,
		AirtableTableName:  cfg.Airtable.TableName,
		PurgeHiddenAnswers: cfg.PurgeHiddenAnswers,
	}, logger)
	exportService := service.NewExportService(formService)
	authService := service.NewAuthService(store, oauth, state.New(state.DefaultPendingTTL), cfg.OwnerID, logger)

	if err := formService.EnsureDefaultForm(ctx); err != nil {
		logger.Error("forms: could not seed default form", "error", err)
	}

	// Initialize Handler
	handler := api.NewHandler(formService, exportService, authService, logger)

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Form builder backend is running"))
	})

	// Register all API Routes
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server: listening", "addr", "http://localhost:"+cfg.Port, "cors", cfg.CORSOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("server: shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

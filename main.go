// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gewnthar/coviddash/config"
	"github.com/gewnthar/coviddash/database"
	"github.com/gewnthar/coviddash/handlers"
	"github.com/gewnthar/coviddash/render"
	"github.com/gewnthar/coviddash/scraper"
	"github.com/gewnthar/coviddash/services"
)

func main() {
	log.Println("Starting COVID-19 dashboard...")

	configPath := os.Getenv("COVIDASH_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file not found at %s. Error: %v", configPath, err)
	}

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	cfg := config.AppConfig
	log.Printf("Configuration loaded. Server port: %s, default country: %s, timezone: %s",
		cfg.Server.Port, cfg.Server.DefaultCountry, cfg.Refresh.Location)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history interface {
		services.RefreshRecorder
		services.RefreshHistory
	}
	if cfg.Database.Enabled {
		if err := database.InitDB(cfg.Database); err != nil {
			log.Fatalf("Error initializing database: %v", err)
		}
		defer database.CloseDB()

		store := database.NewRefreshRunStore(database.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Error preparing database schema: %v", err)
		}
		history = store
	} else {
		log.Println("Database disabled; refresh runs are kept in memory.")
		history = services.NewMemoryRefreshLog(cfg.Refresh.HistorySize)
	}

	downloader := scraper.NewDownloader(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)
	loader := services.NewTimeSeriesLoader(downloader, services.LoaderConfig{
		Sources: services.SourceURLs{
			Cases:      cfg.Sources.CasesCSV,
			Deaths:     cfg.Sources.DeathsCSV,
			Recoveries: cfg.Sources.RecoveriesCSV,
		},
		Timeout:  cfg.Fetch.Timeout,
		Location: cfg.Refresh.Location,
	})

	datasets, err := services.NewDatasetStore(ctx, loader,
		services.WithRecorder(history),
		services.WithLocation(cfg.Refresh.Location),
		services.WithRetryInterval(cfg.Refresh.RetryInterval),
	)
	if err != nil {
		log.Fatalf("Error loading initial dataset: %v", err)
	}

	h := handlers.New(datasets, history, downloader, handlers.Options{
		DefaultCountry: cfg.Server.DefaultCountry,
		DaysShown:      cfg.Server.DaysShown,
		Chart: render.ChartOptions{
			Width:  cfg.Chart.Width,
			Height: cfg.Chart.Height,
			DPI:    cfg.Chart.DPI,
		},
		SourcePageURL:  cfg.Sources.PageURL,
		SourceSelector: cfg.Sources.UpdatedSelector,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on http://localhost%s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Error starting server: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fas-floormap/backend/internal/api"
	"github.com/fas-floormap/backend/internal/config"
	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/history"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/parser"
	"github.com/fas-floormap/backend/internal/session"
	"github.com/fas-floormap/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "FloorMap.exe.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	api.SetErrorDetails(strings.EqualFold(cfg.Advanced.LogLevel, "debug"))

	// Seed entities and cart routes fall back to the built-in floor
	seed := parser.LoadSeedFile(cfg.Storage.SeedFile, time.Now())
	graph := parser.LoadRoutes(cfg.Storage.RoutesFile)

	// Initialize layout storage
	layoutStore, err := storage.NewLocalStore(cfg.GetLayoutDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Optional event journal
	var (
		journal       *history.Journal
		floorJournal  floor.Journal
		eventJournal  api.EventJournal
		historyStatus = "disabled"
	)
	if cfg.Advanced.EnableHistory {
		journal, err = history.Open(cfg.HistoryOptions())
		if err != nil {
			fmt.Printf("Warning: event history unavailable: %v\n", err)
		} else {
			floorJournal = journal
			eventJournal = journal
			historyStatus = "in-memory"
			if cfg.Storage.EnablePersistence {
				historyStatus = cfg.HistoryOptions().Path
			}
		}
	}

	// Initialize session manager
	sessionMgr := session.NewManager(cfg.FloorOptions(graph), floorJournal)
	sessionMgr.SetMaxSessions(cfg.Processing.MaxSessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute)
			}
		}
	}()

	handlers := api.NewHandlers(&api.Dependencies{
		Sessions:            sessionMgr,
		Store:               layoutStore,
		Journal:             eventJournal,
		Graph:               graph,
		Seed:                func() []models.MapEntity { return cloneEntities(seed.Entities) },
		Version:             Version,
		FrameBuffer:         cfg.Processing.FrameBufferSize,
		WSMaxMessageKB:      cfg.Advanced.WebSocketMaxMessageSize,
		AllowLayoutDeletion: cfg.Security.AllowLayoutDeletion,
	})

	e := echo.New()
	e.HideBanner = true

	mw := api.MiddlewareConfig{
		RequestLogging:   cfg.Advanced.EnableRequestLogging,
		Compression:      cfg.Processing.EnableCompression,
		CompressionLevel: cfg.Processing.CompressionLevel,
		BodyLimit:        cfg.Server.BodyLimit,
		Timeout:          time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}
	if cfg.Server.EnableCORS {
		mw.AllowOrigins = splitOrigins(cfg.Server.AllowOrigins)
	}
	api.SetupMiddleware(e, mw)
	api.RegisterRoutes(e, handlers)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	seedSource := cfg.Storage.SeedFile
	if seed.Fallback {
		seedSource = "built-in default"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           FAS Floor Map Server                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Seed:      %-46s║\n", fmt.Sprintf("%s (%d entities)", seedSource, len(seed.Entities)))
	fmt.Printf("║  History:   %-46s║\n", historyStatus)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Server shutdown error: %v\n", err)
	}
	sessionMgr.Shutdown()
	if journal != nil {
		if err := journal.Close(); err != nil {
			fmt.Printf("Failed to close event history: %v\n", err)
		}
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}

func cloneEntities(in []models.MapEntity) []models.MapEntity {
	out := make([]models.MapEntity, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

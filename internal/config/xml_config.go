// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fas-floormap/backend/internal/drag"
	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/history"
	"github.com/fas-floormap/backend/internal/sim"
	"github.com/fas-floormap/backend/internal/viewport"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"FloorMap"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Viewport   ViewportConfig   `xml:"Viewport"`
	Editor     EditorConfig     `xml:"Editor"`
	Simulation SimulationConfig `xml:"Simulation"`
	Processing ProcessingConfig `xml:"Processing"`
	Security   SecurityConfig   `xml:"Security"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file locations
type StorageConfig struct {
	DataDirectory     string `xml:"DataDirectory"`
	LayoutsDirectory  string `xml:"LayoutsDirectory"`
	HistoryDirectory  string `xml:"HistoryDirectory"`
	SeedFile          string `xml:"SeedFile"`
	RoutesFile        string `xml:"RoutesFile"`
	EnablePersistence bool   `xml:"EnablePersistence"`
}

// ViewportConfig contains zoom and fit settings
type ViewportConfig struct {
	MinZoom       float64 `xml:"MinZoom"`
	MaxZoom       float64 `xml:"MaxZoom"`
	ZoomStep      float64 `xml:"ZoomStep"`
	FitPadding    float64 `xml:"FitPadding"`
	ContentWidth  float64 `xml:"ContentWidth"`
	ContentHeight float64 `xml:"ContentHeight"`
	FitOnResize   bool    `xml:"FitOnResize"`
}

// EditorConfig contains entity editing settings
type EditorConfig struct {
	GridSize          int     `xml:"GridSize"`
	SnapToGrid        bool    `xml:"SnapToGrid"`
	NudgeStep         float64 `xml:"NudgeStep"`
	NudgeStepModified float64 `xml:"NudgeStepModified"`
	DragThreshold     float64 `xml:"DragThreshold"`
	StartInEditMode   bool    `xml:"StartInEditMode"`
}

// SimulationConfig contains cart simulation tuning
type SimulationConfig struct {
	TickIntervalMs     int     `xml:"TickIntervalMs"`
	MaxStepMs          int     `xml:"MaxStepMs"`
	ArriveEpsilon      float64 `xml:"ArriveEpsilon"`
	CartSpeed          float64 `xml:"CartSpeed"`
	CartCount          int     `xml:"CartCount"`
	SpawnProbability   float64 `xml:"SpawnProbability"`
	InitialOutputStock int     `xml:"InitialOutputStock"`
	AutoStart          bool    `xml:"AutoStart"`
	RandomSeed         int64   `xml:"RandomSeed"`
}

// ProcessingConfig contains session and response settings
type ProcessingConfig struct {
	MaxSessions            int  `xml:"MaxSessions"`
	SessionTimeoutMinutes  int  `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int  `xml:"CleanupIntervalMinutes"`
	FrameBufferSize        int  `xml:"FrameBufferSize"`
	EnableCompression      bool `xml:"EnableCompression"`
	CompressionLevel       int  `xml:"CompressionLevel"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowLayoutDeletion bool `xml:"AllowLayoutDeletion"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	EnableHistory           bool   `xml:"EnableHistory"`
	DuckDBThreads           int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit       string `xml:"DuckDBMemoryLimit"`
	HistoryBatchSize        int    `xml:"HistoryBatchSize"`
	HistoryFlushMs          int    `xml:"HistoryFlushMs"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "16M",
		},
		Storage: StorageConfig{
			DataDirectory:     "./data",
			LayoutsDirectory:  "./data/layouts",
			HistoryDirectory:  "./data/history",
			SeedFile:          "./data/entities.json",
			RoutesFile:        "./data/routes.yaml",
			EnablePersistence: true,
		},
		Viewport: ViewportConfig{
			MinZoom:       0.5,
			MaxZoom:       3.0,
			ZoomStep:      1.12,
			FitPadding:    24,
			ContentWidth:  3100,
			ContentHeight: 1700,
			FitOnResize:   true,
		},
		Editor: EditorConfig{
			GridSize:          10,
			SnapToGrid:        true,
			NudgeStep:         1,
			NudgeStepModified: 10,
			DragThreshold:     2,
		},
		Simulation: SimulationConfig{
			TickIntervalMs:   16,
			MaxStepMs:        100,
			ArriveEpsilon:    6,
			CartSpeed:        260,
			CartCount:        1,
			SpawnProbability: 0.08,
			AutoStart:        true,
		},
		Processing: ProcessingConfig{
			MaxSessions:            20,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			FrameBufferSize:        8,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Security: SecurityConfig{
			AllowLayoutDeletion: true,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			EnableHistory:           true,
			DuckDBThreads:           2,
			DuckDBMemoryLimit:       "256MB",
			HistoryBatchSize:        1000,
			HistoryFlushMs:          1000,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Sections missing from the file keep their defaults
	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	config.Normalize()
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Floor Map Server Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if seed := os.Getenv("FLOOR_SEED_FILE"); seed != "" {
		c.Storage.SeedFile = seed
	}

	if seed := os.Getenv("SIM_RANDOM_SEED"); seed != "" {
		if s, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Simulation.RandomSeed = s
		}
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	paths := []*string{
		&c.Storage.DataDirectory,
		&c.Storage.LayoutsDirectory,
		&c.Storage.HistoryDirectory,
		&c.Storage.SeedFile,
		&c.Storage.RoutesFile,
	}
	for _, p := range paths {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// Normalize clamps out-of-range values instead of rejecting the file.
func (c *AppConfig) Normalize() {
	d := DefaultConfig()

	v := &c.Viewport
	if !positive(v.MinZoom) {
		v.MinZoom = d.Viewport.MinZoom
	}
	if !positive(v.MaxZoom) {
		v.MaxZoom = d.Viewport.MaxZoom
	}
	if v.MinZoom > v.MaxZoom {
		v.MinZoom, v.MaxZoom = v.MaxZoom, v.MinZoom
	}
	if !(v.ZoomStep > 1) || math.IsInf(v.ZoomStep, 0) {
		v.ZoomStep = d.Viewport.ZoomStep
	}
	if !(v.FitPadding >= 0) {
		v.FitPadding = 0
	}
	if !positive(v.ContentWidth) || !positive(v.ContentHeight) {
		v.ContentWidth, v.ContentHeight = d.Viewport.ContentWidth, d.Viewport.ContentHeight
	}

	ed := &c.Editor
	ed.GridSize = drag.ClampGridSize(ed.GridSize)
	if !positive(ed.NudgeStep) {
		ed.NudgeStep = d.Editor.NudgeStep
	}
	if !positive(ed.NudgeStepModified) {
		ed.NudgeStepModified = d.Editor.NudgeStepModified
	}
	if !(ed.DragThreshold >= 0) {
		ed.DragThreshold = d.Editor.DragThreshold
	}

	s := &c.Simulation
	if s.TickIntervalMs <= 0 {
		s.TickIntervalMs = d.Simulation.TickIntervalMs
	}
	if s.MaxStepMs <= 0 {
		s.MaxStepMs = d.Simulation.MaxStepMs
	}
	if !positive(s.ArriveEpsilon) {
		s.ArriveEpsilon = d.Simulation.ArriveEpsilon
	}
	if !positive(s.CartSpeed) {
		s.CartSpeed = d.Simulation.CartSpeed
	}
	if s.CartCount < 1 {
		s.CartCount = 1
	}
	if math.IsNaN(s.SpawnProbability) || s.SpawnProbability < 0 {
		s.SpawnProbability = 0
	}
	if s.SpawnProbability > 1 {
		s.SpawnProbability = 1
	}
	if s.InitialOutputStock < 0 {
		s.InitialOutputStock = 0
	}

	p := &c.Processing
	if p.MaxSessions <= 0 {
		p.MaxSessions = d.Processing.MaxSessions
	}
	if p.SessionTimeoutMinutes <= 0 {
		p.SessionTimeoutMinutes = d.Processing.SessionTimeoutMinutes
	}
	if p.CleanupIntervalMinutes <= 0 {
		p.CleanupIntervalMinutes = d.Processing.CleanupIntervalMinutes
	}
	if p.FrameBufferSize <= 0 {
		p.FrameBufferSize = d.Processing.FrameBufferSize
	}

	a := &c.Advanced
	if a.DuckDBThreads <= 0 {
		a.DuckDBThreads = d.Advanced.DuckDBThreads
	}
	if a.HistoryBatchSize <= 0 {
		a.HistoryBatchSize = d.Advanced.HistoryBatchSize
	}
	if a.HistoryFlushMs <= 0 {
		a.HistoryFlushMs = d.Advanced.HistoryFlushMs
	}
	if a.WebSocketMaxMessageSize <= 0 {
		a.WebSocketMaxMessageSize = d.Advanced.WebSocketMaxMessageSize
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// ViewportOptions returns the viewport tunables.
func (c *AppConfig) ViewportOptions() viewport.Options {
	return viewport.Options{
		MinZoom:       c.Viewport.MinZoom,
		MaxZoom:       c.Viewport.MaxZoom,
		ZoomStep:      c.Viewport.ZoomStep,
		FitPadding:    c.Viewport.FitPadding,
		ContentWidth:  c.Viewport.ContentWidth,
		ContentHeight: c.Viewport.ContentHeight,
	}
}

// DragOptions returns the entity editing tunables.
func (c *AppConfig) DragOptions() drag.Options {
	return drag.Options{
		GridSize:          c.Editor.GridSize,
		SnapToGrid:        c.Editor.SnapToGrid,
		Threshold:         c.Editor.DragThreshold,
		NudgeStep:         c.Editor.NudgeStep,
		NudgeStepModified: c.Editor.NudgeStepModified,
	}
}

// SimConfig returns the cart simulation tunables.
func (c *AppConfig) SimConfig() sim.Config {
	return sim.Config{
		CartSpeed:          c.Simulation.CartSpeed,
		ArriveEpsilon:      c.Simulation.ArriveEpsilon,
		SpawnProbability:   c.Simulation.SpawnProbability,
		CartCount:          c.Simulation.CartCount,
		InitialOutputStock: c.Simulation.InitialOutputStock,
		Seed:               c.Simulation.RandomSeed,
	}
}

// FloorOptions assembles the per-session floor options. graph may be nil.
func (c *AppConfig) FloorOptions(graph *sim.Graph) floor.Options {
	return floor.Options{
		Viewport:     c.ViewportOptions(),
		Drag:         c.DragOptions(),
		Sim:          c.SimConfig(),
		Graph:        graph,
		TickInterval: time.Duration(c.Simulation.TickIntervalMs) * time.Millisecond,
		MaxStep:      time.Duration(c.Simulation.MaxStepMs) * time.Millisecond,
		AutoStart:    c.Simulation.AutoStart,
		EditMode:     c.Editor.StartInEditMode,
		FitOnResize:  c.Viewport.FitOnResize,
	}
}

// HistoryOptions returns the journal settings. The database lives in the
// history directory when persistence is enabled, in memory otherwise.
func (c *AppConfig) HistoryOptions() history.Options {
	opts := history.DefaultOptions()
	if c.Storage.EnablePersistence {
		opts.Path = filepath.Join(c.Storage.HistoryDirectory, "events.duckdb")
	}
	opts.Threads = c.Advanced.DuckDBThreads
	if c.Advanced.DuckDBMemoryLimit != "" {
		opts.MemoryLimit = c.Advanced.DuckDBMemoryLimit
	}
	opts.BatchSize = c.Advanced.HistoryBatchSize
	opts.FlushInterval = time.Duration(c.Advanced.HistoryFlushMs) * time.Millisecond
	return opts
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetLayoutDir returns the absolute layouts directory path
func (c *AppConfig) GetLayoutDir() string {
	return c.Storage.LayoutsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.LayoutsDirectory,
		c.Storage.HistoryDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

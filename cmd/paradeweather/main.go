package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/lox/paradeweather/internal/api"
	"github.com/lox/paradeweather/internal/forecast"
	"github.com/lox/paradeweather/internal/ingest"
	"github.com/lox/paradeweather/internal/store"
)

type Globals struct {
	DB            string `name:"db" env:"PARADEWEATHER_DB" default:"data/paradeweather.db" help:"Path to SQLite database. Empty disables payload archiving."`
	PowerURL      string `name:"power-url" env:"PARADEWEATHER_POWER_URL" default:"${power_url}" help:"NASA POWER daily point endpoint."`
	WindowStart   string `name:"window-start" env:"PARADEWEATHER_WINDOW_START" default:"2020-01-01" help:"First day of history to fetch (YYYY-MM-DD)."`
	Workers       int    `env:"PARADEWEATHER_WORKERS" default:"4" help:"Concurrent model fits."`
	MaxIterations int    `name:"max-iterations" env:"PARADEWEATHER_MAX_ITERATIONS" default:"0" help:"Optimiser iteration budget per fit (0 uses the built-in default)."`
}

type CLI struct {
	Globals

	Serve ServeCmd `cmd:"" help:"Run the HTTP API."`
	Day   DayCmd   `cmd:"" help:"Forecast a single day and print JSON."`
	Month MonthCmd `cmd:"" help:"Forecast a calendar month and print JSON."`
}

type ServeCmd struct {
	Port      string        `env:"PORT" default:"8080" help:"HTTP server port."`
	Retention time.Duration `env:"PARADEWEATHER_PAYLOAD_RETENTION" default:"720h" help:"How long to keep archived provider payloads."`
}

type DayCmd struct {
	Latitude  float64 `name:"lat" required:"" help:"Latitude in degrees."`
	Longitude float64 `name:"lon" required:"" help:"Longitude in degrees."`
	Date      string  `arg:"" help:"Target day (YYYY-MM-DD)."`
}

type MonthCmd struct {
	Latitude  float64 `name:"lat" required:"" help:"Latitude in degrees."`
	Longitude float64 `name:"lon" required:"" help:"Longitude in degrees."`
	Month     string  `arg:"" help:"Target month (YYYY-MM)."`
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("paradeweather"),
		kong.Description("Statistical daily and monthly climate forecasts from NASA POWER history."),
		kong.UsageOnError(),
		kong.Vars{"power_url": ingest.PowerBaseURL},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&cli.Globals); err != nil {
		log.Fatalf("%s: %v", kctx.Command(), err)
	}
}

func (g *Globals) forecastConfig() (forecast.Config, error) {
	start, err := time.Parse(time.DateOnly, g.WindowStart)
	if err != nil {
		return forecast.Config{}, fmt.Errorf("parse window start: %w", err)
	}
	cfg := forecast.DefaultConfig()
	cfg.WindowStart = start
	cfg.Workers = g.Workers
	if g.MaxIterations > 0 {
		cfg.Daily.MaxIterations = g.MaxIterations
		cfg.Monthly.MaxIterations = g.MaxIterations
	}
	return cfg, nil
}

// openStore opens and migrates the database, or returns nil when no path is
// configured.
func (g *Globals) openStore() (*store.Store, func(), error) {
	if g.DB == "" {
		return nil, func() {}, nil
	}
	if dir := filepath.Dir(g.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := store.Open(g.DB)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func (g *Globals) orchestrator(st *store.Store) (*forecast.Orchestrator, error) {
	cfg, err := g.forecastConfig()
	if err != nil {
		return nil, err
	}
	opts := []ingest.PowerOption{ingest.WithBaseURL(g.PowerURL)}
	if st != nil {
		opts = append(opts, ingest.WithArchive(st))
	}
	return forecast.NewOrchestrator(ingest.NewPowerClient(opts...), cfg), nil
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	if g.DB == "" {
		return fmt.Errorf("serve needs a database for the run log")
	}
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()
	log.Println("database migrated")

	o, err := g.orchestrator(st)
	if err != nil {
		return err
	}

	go cleanupPayloads(ctx, st, c.Retention)
	return api.NewServer(st, o, c.Port).Run(ctx)
}

// cleanupPayloads prunes archived payloads at startup and then daily.
func cleanupPayloads(ctx context.Context, st *store.Store, retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		n, err := st.CleanupOldRawPayloads(retention)
		if err != nil {
			log.Printf("cleanup raw payloads: %v", err)
		} else if n > 0 {
			log.Printf("cleanup: deleted %d raw payloads older than %s", n, retention)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *DayCmd) Run(ctx context.Context, g *Globals) error {
	date, err := time.Parse(time.DateOnly, c.Date)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	o, err := g.orchestrator(st)
	if err != nil {
		return err
	}
	result, err := o.ForecastDay(ctx, forecast.DailyRequest{Latitude: c.Latitude, Longitude: c.Longitude, Date: date})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (c *MonthCmd) Run(ctx context.Context, g *Globals) error {
	month, err := time.Parse("2006-01", c.Month)
	if err != nil {
		return fmt.Errorf("parse month: %w", err)
	}
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	o, err := g.orchestrator(st)
	if err != nil {
		return err
	}
	result, err := o.ForecastMonth(ctx, forecast.MonthlyRequest{Latitude: c.Latitude, Longitude: c.Longitude, Month: month})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

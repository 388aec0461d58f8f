// Command-line entry point for the telegram parser.
//
// Subcommands:
//
//	import  - parse an XLSX or JSONL file of SHR/DEP/ARR triplets
//	serve   - run the REST API server
//	feed    - consume triplets from a NATS subject
//	schema  - create the PostgreSQL and ClickHouse schemas
//
// Usage:
//
//	telegram_parser import -input flights_2025.xlsx [-store] [-sqlite flights.db] [-output out.json]
//	telegram_parser serve -port 8081 [-auth -api-keys KEY1,KEY2]
//	telegram_parser feed -nats-url nats://localhost:4222 -subject telegrams.raw
//	telegram_parser schema
//
// Reference data:
//
//	-regions     GeoJSON FeatureCollection of region boundaries
//	-aerodromes  JSON map of aerodrome codes to names and coordinates
//	-zones       JSON list of named airspace zones
//
// Database settings also come from POSTGRES_* and CLICKHOUSE_* environment
// variables; flags win over the environment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"telegram_parser/internal/api"
	"telegram_parser/internal/flightplan"
	"telegram_parser/internal/geo"
	"telegram_parser/internal/importer"
	"telegram_parser/internal/ingest"
	"telegram_parser/internal/refdata"
	"telegram_parser/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var err error
	switch cmd := strings.ToLower(os.Args[1]); cmd {
	case "import":
		err = runImport(os.Args[2:], logger)
	case "serve":
		err = runServe(os.Args[2:], logger)
	case "feed":
		err = runFeed(os.Args[2:], logger)
	case "schema":
		err = runSchema(os.Args[2:], logger)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func usage(w *os.File) {
	fmt.Fprintln(w, "telegram_parser - UAV flight-plan telegram pipeline:")
	fmt.Fprintln(w, "  import  - parse an XLSX or JSONL file and store or print the records")
	fmt.Fprintln(w, "  serve   - run the REST API server")
	fmt.Fprintln(w, "  feed    - consume triplets from NATS")
	fmt.Fprintln(w, "  schema  - create database schemas")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'telegram_parser <command> -h' for command flags.")
}

// refdataFlags are the reference-data paths shared by every subcommand
// that parses telegrams.
type refdataFlags struct {
	regions    *string
	aerodromes *string
	zones      *string
}

func addRefdataFlags(fs *flag.FlagSet) refdataFlags {
	return refdataFlags{
		regions:    fs.String("regions", envOrDefault("REGIONS_GEOJSON", "data/regions.geojson"), "Region boundaries GeoJSON"),
		aerodromes: fs.String("aerodromes", envOrDefault("AERODROMES_JSON", "data/aerodromes.json"), "Aerodrome reference JSON"),
		zones:      fs.String("zones", envOrDefault("ZONES_JSON", "data/zones.json"), "Named zone reference JSON"),
	}
}

// buildParser assembles the parser from the reference-data flags. A
// missing regions file is fatal; aerodrome and zone files degrade to
// empty directories with a warning. The locator is returned alongside the
// parser so callers can mirror its regions into storage.
func (rf refdataFlags) buildParser(logger *slog.Logger) (*flightplan.Parser, *geo.Locator, error) {
	locator, err := geo.New(*rf.regions)
	if err != nil {
		return nil, nil, fmt.Errorf("load regions: %w", err)
	}
	logger.Info("regions loaded", "path", *rf.regions, "count", locator.Count())

	dir := refdata.Load(*rf.aerodromes, *rf.zones, logger)
	return flightplan.New(dir, locator), locator, nil
}

func addStorageFlags(fs *flag.FlagSet) *storage.Config {
	cfg := storage.DefaultConfig()

	fs.StringVar(&cfg.Postgres.Host, "pg-host", envOrDefault("POSTGRES_HOST", cfg.Postgres.Host), "PostgreSQL host")
	fs.IntVar(&cfg.Postgres.Port, "pg-port", envOrDefaultInt("POSTGRES_PORT", cfg.Postgres.Port), "PostgreSQL port")
	fs.StringVar(&cfg.Postgres.Database, "pg-database", envOrDefault("POSTGRES_DATABASE", cfg.Postgres.Database), "PostgreSQL database")
	fs.StringVar(&cfg.Postgres.User, "pg-user", envOrDefault("POSTGRES_USER", cfg.Postgres.User), "PostgreSQL user")
	fs.StringVar(&cfg.Postgres.Password, "pg-password", envOrDefault("POSTGRES_PASSWORD", cfg.Postgres.Password), "PostgreSQL password")

	fs.StringVar(&cfg.ClickHouse.Host, "ch-host", envOrDefault("CLICKHOUSE_HOST", cfg.ClickHouse.Host), "ClickHouse host")
	fs.IntVar(&cfg.ClickHouse.Port, "ch-port", envOrDefaultInt("CLICKHOUSE_PORT", cfg.ClickHouse.Port), "ClickHouse port")
	fs.StringVar(&cfg.ClickHouse.Database, "ch-database", envOrDefault("CLICKHOUSE_DATABASE", cfg.ClickHouse.Database), "ClickHouse database")
	fs.StringVar(&cfg.ClickHouse.User, "ch-user", envOrDefault("CLICKHOUSE_USER", cfg.ClickHouse.User), "ClickHouse user")
	fs.StringVar(&cfg.ClickHouse.Password, "ch-password", envOrDefault("CLICKHOUSE_PASSWORD", cfg.ClickHouse.Password), "ClickHouse password")

	return &cfg
}

func runImport(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	input := fs.String("input", "", "Input file: .xlsx workbook or .jsonl stream (default: stdin JSONL)")
	workers := fs.Int("workers", 8, "Parser worker pool size")
	store := fs.Bool("store", false, "Store records in PostgreSQL and ClickHouse")
	sqlitePath := fs.String("sqlite", "", "Also store records in a local SQLite file")
	output := fs.String("output", "", "Write parsed records as JSON (default: stdout when not storing)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	rf := addRefdataFlags(fs)
	dbCfg := addStorageFlags(fs)
	_ = fs.Parse(args)

	parser, locator, err := rf.buildParser(logger)
	if err != nil {
		return err
	}
	imp := importer.New(parser, *workers, logger)

	var rows []importer.Row
	switch {
	case *input == "":
		rows, err = importer.ReadJSONL(os.Stdin)
	case strings.EqualFold(filepath.Ext(*input), ".xlsx"):
		rows, err = importer.ReadXLSX(*input)
	default:
		f, ferr := os.Open(*input)
		if ferr != nil {
			return fmt.Errorf("open input: %w", ferr)
		}
		defer f.Close()
		rows, err = importer.ReadJSONL(f)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	ctx := context.Background()
	res, err := imp.Process(ctx, rows)
	if err != nil {
		return err
	}

	if *store {
		db, err := storage.Open(ctx, *dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.SyncRegions(ctx, db.PG, locator.Regions()); err != nil {
			return err
		}
		if err := db.StoreFlights(ctx, res.Records); err != nil {
			return err
		}
		logger.Info("records stored", "count", len(res.Records))
	}

	if *sqlitePath != "" {
		local, err := storage.OpenSQLite(*sqlitePath)
		if err != nil {
			return err
		}
		defer local.Close()
		for _, rec := range res.Records {
			if err := local.UpsertFlight(rec); err != nil {
				return fmt.Errorf("sqlite upsert %s: %w", rec.SID, err)
			}
		}
		logger.Info("records stored locally", "path", *sqlitePath, "count", len(res.Records))
	}

	if *output != "" || (!*store && *sqlitePath == "") {
		out := os.Stdout
		if *output != "" {
			f, err := os.Create(*output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		if *pretty {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(res.Records); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
	}

	logger.Info("import finished", "total", res.Total, "imported", res.Imported, "failed", res.Failed)
	for _, e := range res.Errors {
		logger.Warn("row failed", "row", e.Index, "reason", e.Reason)
	}
	return nil
}

func runServe(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 8081, "HTTP port")
	authEnabled := fs.Bool("auth", false, "Enable API key authentication")
	apiKeys := fs.String("api-keys", "", "Comma-separated list of valid API keys")
	workers := fs.Int("workers", 8, "Parser worker pool size for the import endpoint")
	rf := addRefdataFlags(fs)
	dbCfg := addStorageFlags(fs)
	_ = fs.Parse(args)

	parser, locator, err := rf.buildParser(logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, *dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.SyncRegions(ctx, db.PG, locator.Regions()); err != nil {
		return err
	}

	var keys []string
	for _, k := range strings.Split(*apiKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	server := api.New(db.PG, db.CH, db, importer.New(parser, *workers, logger), api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	}, logger)

	return server.Run()
}

func runFeed(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	cfg := ingest.DefaultConfig()
	fs.StringVar(&cfg.URL, "nats-url", envOrDefault("NATS_URL", cfg.URL), "NATS server URL")
	fs.StringVar(&cfg.Subject, "subject", cfg.Subject, "NATS subject carrying triplet JSON")
	fs.StringVar(&cfg.Queue, "queue", cfg.Queue, "NATS queue group (empty for plain subscribe)")
	rf := addRefdataFlags(fs)
	dbCfg := addStorageFlags(fs)
	_ = fs.Parse(args)

	parser, locator, err := rf.buildParser(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, *dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.SyncRegions(ctx, db.PG, locator.Regions()); err != nil {
		return err
	}

	sub := ingest.New(parser, db, cfg, logger)
	return sub.Run(ctx)
}

func runSchema(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	dbCfg := addStorageFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	db, err := storage.Open(ctx, *dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.CreateSchemas(ctx); err != nil {
		return err
	}
	logger.Info("schemas created")
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

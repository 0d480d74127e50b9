package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/audarr/internal/config"
	"github.com/jmylchreest/audarr/internal/database"
	"github.com/jmylchreest/audarr/internal/database/migrations"
	"github.com/jmylchreest/audarr/internal/encoder"
	internalhttp "github.com/jmylchreest/audarr/internal/http"
	"github.com/jmylchreest/audarr/internal/http/handlers"
	"github.com/jmylchreest/audarr/internal/media"
	"github.com/jmylchreest/audarr/internal/repository"
	"github.com/jmylchreest/audarr/internal/scheduler"
	"github.com/jmylchreest/audarr/internal/storage"
	"github.com/jmylchreest/audarr/internal/transcode"
	"github.com/jmylchreest/audarr/internal/util"
	"github.com/jmylchreest/audarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audarr server",
	Long: `Start the audarr HTTP server and API.

The server exposes:
- GET /stream/{trackID} for cached, transcoded audio
- REST API for registering tracks and inspecting live transcode sessions
- Health check endpoints
- Interactive API documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("host", "0.0.0.0", "Host to bind to")
	flags.Int("port", 8080, "Port to listen on")
	flags.String("database", "audarr.db", "Database DSN (file path for sqlite)")
	flags.String("media-root", "./music", "Directory registered tracks must live under")
	flags.String("cache-root", "./cache/transcode", "Directory for finished transcodes")
	flags.String("encoder", "ffmpeg", "Encoder binary (ffmpeg or compatible)")

	for flag, key := range map[string]string{
		"host":       "server.host",
		"port":       "server.port",
		"database":   "database.dsn",
		"media-root": "media.root",
		"cache-root": "transcode.cache-root",
		"encoder":    "transcode.encoder-path",
	} {
		mustBindPFlag(key, flags.Lookup(flag))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	trackRepo := repository.NewTrackRepository(db.DB)

	sandbox, err := storage.NewSandbox(cfg.Media.Root)
	if err != nil {
		return fmt.Errorf("initializing media root: %w", err)
	}

	// The readiness probe stats the cache root, so it must exist before
	// the first transcode creates it.
	if err := os.MkdirAll(cfg.Transcode.CacheRoot, 0750); err != nil {
		return fmt.Errorf("creating cache root: %w", err)
	}

	prober, err := buildProber(cfg.Media)
	if err != nil {
		return err
	}

	encoderPath, err := util.ResolveBinary(cfg.Transcode.EncoderPath)
	if err != nil {
		return fmt.Errorf("locating encoder binary: %w", err)
	}

	defaultFormat, err := encoder.ParseFormat(cfg.Transcode.DefaultFormat)
	if err != nil {
		return fmt.Errorf("invalid transcode.default-format: %w", err)
	}

	registry := transcode.NewRegistry(logger)
	dispatcher := transcode.NewDispatcher(transcode.Config{
		CacheRoot:      cfg.Transcode.CacheRoot,
		EncoderPath:    encoderPath,
		Ladder:         transcode.NewLadder(cfg.Transcode.AllowedBitrates),
		WaitTimeout:    cfg.Transcode.ClientWaitTimeout(),
		PumpBufferSize: int(cfg.Transcode.PumpBufferSize.Bytes()),
		ChunkSize:      cfg.Transcode.ChunkSize.Bytes(),
	}, registry, logger)

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	docsHandler := handlers.NewDocsHandler("audarr API", "/openapi.yaml")
	server.Router().Get("/docs", docsHandler.ServeHTTP)

	healthHandler := handlers.NewHealthHandler(version.Version).
		WithDB(db.DB).
		WithRegistry(registry).
		WithCacheRoot(cfg.Transcode.CacheRoot)
	healthHandler.Register(server.API())

	tracksHandler := handlers.NewTracksHandler(trackRepo, prober, sandbox)
	tracksHandler.Register(server.API())

	sessionsHandler := handlers.NewSessionsHandler(registry)
	sessionsHandler.Register(server.API())

	streamHandler := handlers.NewStreamHandler(trackRepo, prober, dispatcher).
		WithLogger(logger).
		WithDefaults(defaultFormat, cfg.Transcode.DefaultBitrate)
	streamHandler.Register(server.API())
	streamHandler.RegisterChiRoutes(server.Router())

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.NewScheduler(trackRepo, cfg.Scheduler.TrackPruneSchedule)
		if err != nil {
			return fmt.Errorf("initializing scheduler: %w", err)
		}
		if err := sched.WithLogger(logger).Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// Encoder children die with the registry, after the server has
	// drained its clients.
	defer registry.Close()

	logger.Info("starting audarr server",
		slog.String("addr", cfg.Server.Address()),
		slog.String("media_root", sandbox.BaseDir()),
		slog.String("cache_root", cfg.Transcode.CacheRoot),
		slog.String("version", version.Version))

	return server.ListenAndServe(ctx)
}

// openDatabase connects the track store and brings its schema up to date.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*database.DB, error) {
	db, err := database.New(cfg, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.Register(migrations.AllMigrations()...)
	if err := migrator.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// buildProber locates the ffprobe binary named by the config, or looks one
// up in PATH when unset.
func buildProber(cfg config.MediaConfig) (*media.Prober, error) {
	path := cfg.ProbePath
	if path == "" {
		path = "ffprobe"
	}
	path, err := util.ResolveBinary(path)
	if err != nil {
		return nil, fmt.Errorf("locating probe binary: %w", err)
	}
	return media.NewProber(path).WithTimeout(cfg.ProbeTimeout.Duration()), nil
}

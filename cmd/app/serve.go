package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/compiler"
	"github.com/local/reportcompiler/internal/config"
	"github.com/local/reportcompiler/internal/converter"
	"github.com/local/reportcompiler/internal/dispatcher"
	"github.com/local/reportcompiler/internal/logger"
	"github.com/local/reportcompiler/internal/metrics"
	"github.com/local/reportcompiler/internal/mupdf"
	"github.com/local/reportcompiler/internal/orchestrator"
	"github.com/local/reportcompiler/internal/queue"
	"github.com/local/reportcompiler/internal/statuscheck"
	"github.com/local/reportcompiler/internal/store"
)

func runServe(args []string, stderr io.Writer) error {
	var common commonFlags
	fs := newFlagSet("serve", "", stderr)
	addCommonFlags(fs, &common)
	port := fs.String("port", "", "HTTP port (defaults to config server.port)")
	noWorker := fs.Bool("no-worker", false, "only accept jobs, do not run them")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}

	cfg, err := loadConfig(fs, &common, nil)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if err := initLogging(cfg, common.verbose, os.Stdout); err != nil {
		return err
	}
	defer logger.Close()
	metrics.Init()

	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rq.Close()
	rs := store.NewRedisStatus(rq.Client())

	s3 := s3Source(cfg)
	office := converter.NewLibreOffice(cfg.Renderer.Binary, cfg.Renderer.Timeout)
	opts, err := compilerOptions(cfg)
	if err != nil {
		return err
	}
	comp := compiler.New(office, opts)

	checker := statuscheck.New(statuscheck.Options{Redis: rq, S3: s3, LibreOffice: office, MuPDF: mupdf.NewExtractor()})
	orch := orchestrator.New(orchestrator.Dependencies{Queue: rq, Status: rs, Health: checker})
	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go orchestrator.MonitorQueue(ctx, rq, 15*time.Second)
	go orchestrator.RunCleanup(ctx, cfg.Compile.TempDir, cfg.Worker.TempMaxAge, 0)

	var disp *dispatcher.Worker
	if !*noWorker {
		proc := orchestrator.NewProcessor(comp, s3, orchestrator.ProcessorOptions{
			TempParent: cfg.Compile.TempDir,
			KeepTemp:   cfg.Compile.KeepTemp,
			OutputDir:  outputDir(cfg),
			Password:   cfg.Storage.EncryptionPassword,
			HostSlots:  2,
		})
		breaker := dispatcher.NewCircuitBreaker(rq.Client(), cfg.Worker.BreakerThreshold,
			cfg.Worker.BreakerBaseBackoff, cfg.Worker.BreakerMaxBackoff)
		disp = dispatcher.New(dispatcher.Config{
			Concurrency:  cfg.Worker.Concurrency,
			JobTimeout:   cfg.Worker.JobTimeout,
			MaxAttempts:  cfg.Worker.JobMaxAttempts,
			RetryBase:    cfg.Worker.RetryBaseDelay,
			Jitter:       cfg.Worker.RetryJitter,
			Factor:       cfg.Worker.RetryBackoffFactor,
			BreakerDelay: cfg.Worker.BreakerBaseBackoff,
		}, rq, proc, rs, breaker)
		disp.Start()
	}

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if disp != nil {
		if err := disp.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("workers still running at shutdown")
		}
	}
	log.Info().Msg("shutdown complete")
	return nil
}

// outputDir is the local result directory; empty when results go to S3.
func outputDir(cfg config.Config) string {
	if cfg.Storage.Bucket != "" {
		return ""
	}
	return cfg.Storage.OutputDir
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelstream/internal/persistence/chunkdb"
	plog "voxelstream/internal/persistence/log"
	"voxelstream/internal/sim/stream"
	"voxelstream/internal/sim/terrain/gen"
	"voxelstream/internal/sim/tuning"
	"voxelstream/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address (metrics + observer feed)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (defaults when empty)")
		dbPath     = flag.String("db", "", "sqlite save file (overrides storage.path)")
		tickRate   = flag.Int("tick_hz", 20, "control loop ticks per second")
		speed      = flag.Float64("speed", 8, "viewpoint speed in blocks per second")
		pathRadius = flag.Float64("path_radius", 256, "radius of the scripted circular walk in blocks (0 walks +x)")
		maxTicks   = flag.Uint64("ticks", 0, "stop after this many ticks (0 runs until signalled)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[streamer] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if p := strings.TrimSpace(*dbPath); p != "" {
		tune.Storage.Path = p
	}
	if *tickRate <= 0 {
		logger.Fatalf("tick_hz must be positive")
	}

	g, err := buildGenerator(tune.Generator)
	if err != nil {
		logger.Fatalf("generator: %v", err)
	}

	store, err := chunkdb.Open(tune.Storage.Path, chunkdb.Options{
		Queue:        tune.Streaming.QueueCapacity,
		MaxBatch:     tune.Storage.MaxBatch,
		Retries:      tune.Storage.Retries,
		RetryBackoff: tune.Storage.RetryBackoff(),
		Logger:       log.New(os.Stdout, "[chunkdb] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("open %s: %v", tune.Storage.Path, err)
	}
	saved := store.Saved()
	logger.Printf("storage=%s saved_regions=%d generator=%s seed=%d", tune.Storage.Path, len(saved), tune.Generator.Kind, tune.Generator.Seed)

	var journal *plog.Journal
	if tune.Storage.JournalDir != "" {
		journal = plog.NewJournal(tune.Storage.JournalDir)
		defer func() {
			if err := journal.Close(); err != nil {
				logger.Printf("journal close: %v", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := stream.Deps{
		Generator: stream.NewGenerateWorker(g, tune.Streaming.QueueCapacity),
		Store:     store,
		Mesher:    stream.NewMeshWorker(tune.Streaming.QueueCapacity),
		Saved:     saved,
		Metrics:   stream.NewMetrics(reg),
	}
	if journal != nil {
		deps.Journal = journal
	}
	s := stream.New(tune.Streaming, deps, logger)

	obs := observer.NewServer(logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/stats", obs.StatsHandler())
	mux.HandleFunc("/v1/observe", obs.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("ListenAndServe: %v", err)
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	walk := path{Radius: *pathRadius, Speed: *speed, Hz: *tickRate}
	runErr := run(ctx, s, obs, walk, tune.Streaming.RenderDistance, *maxTicks, logger)

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)

	if err := s.Close(); err != nil {
		logger.Printf("close: %v", err)
	}
	st := store.Stats()
	logger.Printf("stopped: batches=%d saves=%d loads=%d failures=%d", st.Batches, st.Saves, st.Loads, st.Failures)
	if runErr != nil {
		logger.Fatalf("run: %v", runErr)
	}
}

func buildGenerator(cfg tuning.Generator) (gen.Generator, error) {
	switch cfg.Kind {
	case tuning.GeneratorLayered:
		return gen.NewLayered(), nil
	case tuning.GeneratorNoise:
		n := cfg.Noise
		return gen.NewNoise(cfg.Seed, gen.NoiseParams{
			Alpha:      n.Alpha,
			Beta:       n.Beta,
			Octaves:    n.Octaves,
			Scale:      n.Scale,
			BaseHeight: n.BaseHeight,
			Amplitude:  n.Amplitude,
		}), nil
	}
	return nil, fmt.Errorf("unknown generator kind %q", cfg.Kind)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

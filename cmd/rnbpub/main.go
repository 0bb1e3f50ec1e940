// Command rnbpub publishes the RNB building exports on data.gouv.fr.
//
//	rnbpub publish [-all] AREA...   run the publication now, area by area
//	rnbpub enqueue [-all] AREA...   queue one publication task per area
//	rnbpub worker                   consume publication tasks
//	rnbpub serve                    admin API (health, metrics, enqueue)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/config"
	"github.com/leonkenneth/RNB-coeur/internal/logging"
	"github.com/leonkenneth/RNB-coeur/internal/tasks"
	"github.com/leonkenneth/RNB-coeur/internal/web"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rnbpub <publish|enqueue|worker|serve> [flags] [AREA...]")
	fmt.Fprintln(os.Stderr, "AREA is 'nat' or a department code such as 75 or 2A.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Overload so the .env file wins over stale shell variables.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "publish":
		err = runPublish(ctx, cfg, args)
	case "enqueue":
		err = runEnqueue(ctx, cfg, args)
	case "worker":
		err = runWorker(ctx, cfg)
	case "serve":
		err = runServe(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		slog.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

// parseAreas reads the area arguments of publish and enqueue.
func parseAreas(name string, args []string) ([]string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	all := fs.Bool("all", false, "every area: nat then each department")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *all {
		if fs.NArg() > 0 {
			return nil, errors.New("-all takes no area arguments")
		}
		var out []string
		for _, a := range area.All() {
			out = append(out, a.String())
		}
		return out, nil
	}
	if fs.NArg() == 0 {
		return nil, errors.New("no area given")
	}
	return fs.Args(), nil
}

func runPublish(ctx context.Context, cfg *config.Config, args []string) error {
	names, err := parseAreas("publish", args)
	if err != nil {
		return err
	}
	areas := make([]area.Area, 0, len(names))
	for _, n := range names {
		a, err := area.Parse(n)
		if err != nil {
			return err
		}
		areas = append(areas, a)
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	pipeline, err := newPipeline(ctx, cfg, pool)
	if err != nil {
		return err
	}
	return pipeline.Publish(ctx, areas)
}

func runEnqueue(ctx context.Context, cfg *config.Config, args []string) error {
	names, err := parseAreas("enqueue", args)
	if err != nil {
		return err
	}

	q, err := openQueue(cfg.Queue)
	if err != nil {
		return err
	}
	defer q.Close()

	sent, err := tasks.EnqueueAreas(ctx, q, names)
	for _, t := range sent {
		slog.Info("task enqueued", "task_id", t.ID, "task", t.Name, "args", t.Args)
	}
	return err
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	pipeline, err := newPipeline(ctx, cfg, pool)
	if err != nil {
		return err
	}

	q, err := openQueue(cfg.Queue)
	if err != nil {
		return err
	}
	defer q.Close()

	slog.Info("worker consuming", "backend", cfg.Queue.Backend, "queue", cfg.Queue.Name)
	return tasks.NewWorker(q, pipeline).Run(ctx)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	q, err := openQueue(cfg.Queue)
	if err != nil {
		return err
	}
	defer q.Close()

	checks := map[string]web.Pinger{}
	if p, ok := q.(web.Pinger); ok {
		checks["queue"] = p
	}

	server := web.NewServer(cfg, q, checks)

	go tasks.StartScheduler(ctx, q, tasks.ScheduleConfig{Interval: cfg.Publish.ScheduleInterval})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

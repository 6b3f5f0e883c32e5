// Command scribear is the dispatcher process entrypoint: it spawns and
// owns the worker pool, serves the client-facing WebSocket front door,
// and routes per-connection sessions through the placement layer. A
// second copy of this same binary runs per worker process, re-executed
// with SCRIBEAR_WORKER=1 set so the worker side never needs a separate
// build artifact — grounded on main.go's single-binary, env-driven
// startup shape, extended with the self-reexec branch spec §5 requires
// for true OS-process isolation (the teacher's "workers" are instead
// external containers spawned by calls-offloader, outside this repo).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribear/scribear/internal/config"
	"github.com/scribear/scribear/internal/dispatcher"
	"github.com/scribear/scribear/internal/ipc"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/logging"
	"github.com/scribear/scribear/internal/manager"
	"github.com/scribear/scribear/internal/provider"
	"github.com/scribear/scribear/internal/session"
)

const shutdownTimeout = 10 * time.Second

// workerEnv marks a re-exec'd process as the worker side (§5: an
// isolated OS process with its own address space and copies of context
// specs, never sharing contexts across workers).
const workerEnv = "SCRIBEAR_WORKER"

func main() {
	if os.Getenv(workerEnv) == "1" {
		runWorker()
		return
	}

	dev := flag.Bool("dev", false, "switch log format to pretty text")
	flag.Parse()

	log := logging.New(logging.Options{Dev: *dev, Level: logging.ParseLevel(os.Getenv("LOG_LEVEL"))})
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if err := cfg.IsValid(); err != nil {
		log.Error("invalid config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	doc, err := config.LoadProviderConfigDocument(cfg.ProviderConfigPath)
	if err != nil {
		log.Error("failed to load provider config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	specs := contextSpecsFromDocument(doc)

	log.Info("starting scribear", slog.Int("num_workers", doc.NumWorkers))

	workers, err := spawnWorkers(log, doc)
	if err != nil {
		log.Error("failed to spawn workers", slog.String("err", err.Error()))
		os.Exit(1)
	}

	disp := dispatcher.New(workers, specs)

	registry, err := provider.New(cfg.APIKey, doc, disp)
	if err != nil {
		log.Error("failed to build provider registry", slog.String("err", err.Error()))
		os.Exit(1)
	}

	srv := newServer(cfg, log, registry)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.ListenAndServe() }()

	log.Info("scribear listening", slog.String("addr", srv.Addr))

	select {
	case err := <-serveErrCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", slog.String("err", err.Error()))
		}
	case <-sig:
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", slog.String("err", err.Error()))
	}

	if err := disp.Shutdown(); err != nil {
		log.Warn("worker pool shutdown error", slog.String("err", err.Error()))
	}

	log.Info("scribear has stopped")
}

// contextSpecsFromDocument converts the provider-config document's
// context entries into the jobs.ContextSpec shape the dispatcher and
// worker-side context table both consume.
func contextSpecsFromDocument(doc config.ProviderConfigDocument) []jobs.ContextSpec {
	specs := make([]jobs.ContextSpec, 0, len(doc.Contexts))
	for _, c := range doc.Contexts {
		tags := make(map[string]struct{}, len(c.Tags))
		for _, t := range c.Tags {
			tags[t] = struct{}{}
		}
		specs = append(specs, jobs.ContextSpec{
			UID:              c.UID,
			MaxInstances:     c.MaxInstances,
			Tags:             tags,
			NegativeAffinity: c.NegativeAffinity,
			CreationCost:     c.CreationCost,
			ContextConfig:    c.ContextConfig,
		})
	}
	return specs
}

// spawnWorkers starts doc.NumWorkers worker processes, each a re-exec of
// the current binary with the worker-side environment set, and blocks
// until each reports INITIALIZE_WORKER (manager.New's contract).
func spawnWorkers(log *slog.Logger, doc config.ProviderConfigDocument) ([]dispatcher.Worker, error) {
	workers := make([]dispatcher.Worker, 0, doc.NumWorkers)
	for i := 0; i < doc.NumWorkers; i++ {
		id := fmt.Sprintf("worker-%d", i)
		spawn := execSpawner(id)

		m, err := manager.New(id, log.With(slog.String("worker_id", id)), doc.RollingUtilizationWindow(), spawn)
		if err != nil {
			for _, w := range workers {
				_ = w.SendTerminate()
			}
			return nil, fmt.Errorf("main: failed to start %s: %w", id, err)
		}
		workers = append(workers, m)
	}
	return workers, nil
}

// execSpawner returns a manager.Spawner that re-execs the current binary
// as a worker process, wiring its stdin/stdout to an ipc.Transport and
// inheriting stderr for crash diagnostics (workers never write logs
// directly, per §6, but a panic before the logger forwarder attaches
// still needs somewhere to go).
func execSpawner(id string) manager.Spawner {
	return func() (*ipc.Transport, func() error, error) {
		exe, err := os.Executable()
		if err != nil {
			return nil, nil, fmt.Errorf("main: failed to resolve executable path: %w", err)
		}

		cmd := exec.Command(exe)
		cmd.Env = append(os.Environ(), workerEnv+"=1")
		cmd.Stderr = os.Stderr

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("main: failed to open stdin pipe for %s: %w", id, err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("main: failed to open stdout pipe for %s: %w", id, err)
		}

		if err := cmd.Start(); err != nil {
			return nil, nil, fmt.Errorf("main: failed to start %s: %w", id, err)
		}

		transport := ipc.NewTransport(stdin, stdout)
		wait := func() error { return cmd.Wait() }
		return transport, wait, nil
	}
}

// newServer builds the HTTP server hosting the client-facing WebSocket
// endpoint, grounded on the generic gorilla/websocket Upgrader-per-
// connection idiom seen across the pack (e.g. strawgo-ai's
// WebSocketTransport) rather than on anything in the teacher, which has
// no HTTP front door of its own.
func newServer(cfg config.EnvConfig, log *slog.Logger, registry *provider.Registry) *http.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", slog.String("err", err.Error()))
			return
		}

		sess := session.New(conn, registry, cfg.WSInitTimeout())
		if err := sess.Run(); err != nil {
			log.Debug("session closed", slog.String("err", err.Error()))
		}
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
}

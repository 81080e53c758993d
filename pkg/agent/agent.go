package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/canonical/hpct-slurm-client-operator/pkg/facts"
	"github.com/canonical/hpct-slurm-client-operator/pkg/log"
	"github.com/canonical/hpct-slurm-client-operator/pkg/metrics"
	"github.com/canonical/hpct-slurm-client-operator/pkg/reconcile"
	"github.com/canonical/hpct-slurm-client-operator/pkg/relation"
	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Config holds agent configuration.
type Config struct {
	// SpoolDir is where the transport shim drops relation event files.
	SpoolDir string
	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
}

// Agent runs the event loop: exactly one relation event is handled start to
// finish before the next is dequeued. Each handled event is dispatch, a full
// reconciliation pass, a status recomputation, and a durable record of the
// event sequence, in that order. There is no mid-run cancellation; a process
// restart resumes from the persisted fact store and the still-spooled events.
type Agent struct {
	cfg        Config
	store      facts.Store
	registry   *relation.Registry
	reconciler *reconcile.Reconciler

	httpSrv *http.Server
}

// New assembles an agent from its collaborators.
func New(cfg Config, store facts.Store, registry *relation.Registry, reconciler *reconcile.Reconciler) *Agent {
	return &Agent{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		reconciler: reconciler,
	}
}

// Run processes spooled events until the context is cancelled. Events already
// in the spool at startup are handled first, in sequence order; new arrivals
// are picked up through the directory watcher.
func (a *Agent) Run(ctx context.Context) error {
	logger := log.WithComponent("agent")

	if err := os.MkdirAll(a.cfg.SpoolDir, 0755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create spool watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(a.cfg.SpoolDir); err != nil {
		return fmt.Errorf("watch spool dir: %w", err)
	}

	a.startMetrics()
	defer a.stopMetrics()

	// Replay whatever was spooled while the agent was down.
	if err := a.drainSpool(); err != nil {
		return err
	}

	logger.Info().Str("spool", a.cfg.SpoolDir).Msg("agent running")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("agent stopping")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// The shim writes to a temp name and renames into place, so both
			// Create and Rename mean a complete event file is available.
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := a.drainSpool(); err != nil {
				return err
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(werr).Msg("spool watcher error")
		}
	}
}

// drainSpool handles every complete event file currently in the spool, oldest
// sequence first, removing each file once its event has been durably handled.
func (a *Agent) drainSpool() error {
	logger := log.WithComponent("agent")

	entries, err := os.ReadDir(a.cfg.SpoolDir)
	if err != nil {
		return fmt.Errorf("read spool dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	// Event files are named by zero-padded sequence; lexical order is arrival order.
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(a.cfg.SpoolDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read event file %s: %w", path, err)
		}
		var ev types.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("malformed event file set aside")
			if err := os.Rename(path, path+".invalid"); err != nil {
				return fmt.Errorf("set aside %s: %w", path, err)
			}
			continue
		}
		if err := a.HandleEvent(ev); err != nil {
			return err
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove handled event %s: %w", path, err)
		}
	}
	return nil
}

// HandleEvent processes one relation event synchronously: dispatch to the
// handler, full reconciliation pass, status recomputation. Replays of already
// handled sequences are skipped; idempotent daemon operations make replay of
// an interrupted event safe.
func (a *Agent) HandleEvent(ev types.Event) error {
	logger := log.WithComponent("agent")

	if ev.Sequence != 0 {
		last, err := a.store.LastSequence()
		if err != nil {
			return err
		}
		if ev.Sequence <= last {
			logger.Debug().Uint64("sequence", ev.Sequence).Msg("replayed event skipped")
			return nil
		}
	}

	metrics.EventsHandledTotal.WithLabelValues(string(ev.Relation), string(ev.Kind)).Inc()
	logger.Info().
		Str("relation", string(ev.Relation)).
		Str("kind", string(ev.Kind)).
		Uint64("sequence", ev.Sequence).
		Msg("handling event")

	if err := a.registry.Dispatch(ev); err != nil {
		var perr *facts.PersistenceError
		if errors.As(err, &perr) {
			return err
		}
		// A handler that could not read its bag records nothing; the pass
		// below still runs against the facts we do have.
		logger.Warn().Err(err).Msg("handler failed")
	}

	st, err := a.reconciler.Run()
	if err != nil {
		return err
	}
	logger.Info().Str("status", st.String()).Msg("event handled")

	if ev.Sequence != 0 {
		if err := a.store.SaveLastSequence(ev.Sequence); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) startMetrics() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.httpSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	go func() {
		logger := log.WithComponent("agent")
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func (a *Agent) stopMetrics() {
	if a.httpSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpSrv.Shutdown(ctx)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/astromechza/plansync/pkg/planning"
	"github.com/astromechza/plansync/pkg/store"
	"github.com/astromechza/plansync/pkg/uisync"
	"github.com/astromechza/plansync/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	configVar := flag.String("config", "", "path to a toml config file")
	addrVar := flag.String("addr", "", "the address to listen on, overrides the config file")
	flag.Parse()

	cfg, err := loadServerConfig(*configVar)
	if err != nil {
		return err
	}
	if *addrVar != "" {
		cfg.Addr = *addrVar
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("Opening database", "path", cfg.Database)
	st, err := store.OpenSQLite(cfg.Database, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Init(ctx, cfg.StoreID); err != nil {
		return err
	}
	doc, err := st.Load(ctx, cfg.StoreID)
	if err != nil {
		return err
	}
	snapshot, err := store.DecodeSnapshot(doc)
	if err != nil {
		return err
	}

	manager := planning.NewPlanManager(planning.WithLogger(slog.Default()))
	manager.Restore(snapshot)
	s := &server{
		cfg:      cfg,
		store:    st,
		doc:      doc,
		manager:  manager,
		actor:    planning.NewActor(manager, 1024),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}

	if cfg.Metrics {
		planning.RegisterMetrics()
		uisync.RegisterMetrics()
	}

	g, gctx := errgroup.WithContext(ctx)
	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.router(),
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		return s.actor.Run(gctx)
	})

	g.Go(func() error {
		t := time.NewTicker(cfg.BackupInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := s.backup(gctx); err != nil && gctx.Err() == nil {
					slog.Error("failed to backup plans", "err", err)
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		slog.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	// The actor has stopped, so the manager can be read directly.
	if err := s.persist(context.Background(), s.manager.Snapshot()); err != nil {
		slog.Error("failed final backup", "err", err)
	}
	if cfg.RenderOnExit {
		s.renderDebug()
	}
	return runErr
}

type server struct {
	cfg      serverConfig
	store    *store.SQLiteStore
	doc      *automerge.Doc
	manager  *planning.PlanManager
	actor    *planning.Actor
	upgrader websocket.Upgrader
}

// backup takes a snapshot on the actor and writes it to the database if it changed.
func (s *server) backup(ctx context.Context) error {
	var snapshot planning.Snapshot
	if err := s.actor.Call(ctx, func(m *planning.PlanManager) {
		snapshot = m.Snapshot()
	}); err != nil {
		return fmt.Errorf("failed to snapshot: %w", err)
	}
	return s.persist(ctx, snapshot)
}

func (s *server) persist(ctx context.Context, snapshot planning.Snapshot) error {
	committed, err := store.EncodeSnapshot(s.doc, snapshot)
	if err != nil {
		return err
	}
	if !committed {
		return nil
	}
	_, err = s.store.Save(ctx, s.cfg.StoreID, s.doc)
	return err
}

func (s *server) renderDebug() {
	tf := filepath.Join(os.TempDir(), s.cfg.StoreID+".automerge")
	if err := os.WriteFile(tf, s.doc.Save(), 0o644); err != nil {
		slog.Error("failed to dump", "store", s.cfg.StoreID, "err", err)
	} else {
		slog.Info("dumped", "store", s.cfg.StoreID, "path", tf)
	}
	if svgPath, err := viz.RenderToTemp(s.doc); err != nil {
		slog.Error("failed to render", "store", s.cfg.StoreID, "err", err)
	} else {
		slog.Info("rendered", "store", s.cfg.StoreID, "path", "file://"+svgPath)
	}

	pngPath := filepath.Join(os.TempDir(), s.cfg.StoreID+"-master.png")
	f, err := os.Create(pngPath)
	if err != nil {
		slog.Error("failed to render master", "err", err)
		return
	}
	defer f.Close()
	if err := viz.RenderResultPNG(s.manager.MasterResult(), f); err != nil {
		slog.Error("failed to render master", "err", err)
		return
	}
	slog.Info("rendered", "store", s.cfg.StoreID, "path", "file://"+pngPath)
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/machines/{machine}/planning").HandlerFunc(s.servePlanning)
	r.Methods(http.MethodGet).Path("/snapshot").HandlerFunc(s.getSnapshot)
	r.Methods(http.MethodGet).Path("/master.png").HandlerFunc(s.getMasterPNG)
	if s.cfg.Metrics {
		r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	}
	return r
}

func (s *server) servePlanning(writer http.ResponseWriter, request *http.Request) {
	machine := planning.MachineID(mux.Vars(request)["machine"])
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	session := uisync.NewSession(machine, conn, s.actor, s.cfg.OutboxSize, slog.Default())
	if err := session.Run(request.Context()); err != nil {
		slog.Error("failed to serve session", "machine", machine, "err", err)
	}
}

func (s *server) getSnapshot(writer http.ResponseWriter, request *http.Request) {
	var snapshot planning.Snapshot
	if err := s.actor.Call(request.Context(), func(m *planning.PlanManager) {
		snapshot = m.Snapshot()
	}); err != nil {
		slog.Error("failed to snapshot", "err", err)
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(snapshot); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

func (s *server) getMasterPNG(writer http.ResponseWriter, request *http.Request) {
	var result *planning.PlanResult
	if err := s.actor.Call(request.Context(), func(m *planning.PlanManager) {
		result = m.MasterResult().Clone()
	}); err != nil {
		slog.Error("failed to read master result", "err", err)
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.Header().Add("Content-Type", "image/png")
	if err := viz.RenderResultPNG(result, writer); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hextactics.gg/internal/protocol"
	"hextactics.gg/internal/sim/catalogs"
	"hextactics.gg/internal/sim/lobby"
	"hextactics.gg/internal/sim/tuning"
	"hextactics.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "damage roll seed (overrides tuning; 0 keeps tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite match index")
		dev        = flag.Bool("dev", false, "human-readable debug logging")
	)
	flag.Parse()

	logger := newLogger(*dev)
	defer func() { _ = logger.Sync() }()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal("load catalogs", zap.Error(err))
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatal("load tuning", zap.Error(err))
		}
		logger.Info("tuning not found; using defaults", zap.String("path", tp))
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal("data dir", zap.Error(err))
	}

	// Optional read-model index; never consulted by the rules.
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatal("open index backend", zap.Error(err))
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalog(*configDir, &cats.Units, tune); err != nil {
			logger.Warn("index backend: upsert catalog", zap.Error(err))
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	rec := newFanoutRecorder(ctx, recorderConfig{
		Logger:          logger.Named("recorder"),
		DataDir:         *dataDir,
		Seed:            tune.Seed,
		ArchiveOnFinish: tune.History.ArchiveOnFinish,
		Index:           idx,
	})
	// Runs before idx.Close so queued archive paths reach the index.
	defer func() {
		cancel()
		rec.Close()
	}()

	hub := ws.NewHub(logger.Named("hub"))
	l := lobby.New(lobby.Config{
		Tuning:   tune,
		Units:    &cats.Units,
		Logger:   logger.Named("lobby"),
		Notifier: hub,
		Recorder: rec,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(l, hub, idx, rec))

	if envBool("HT_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/matches", adminMatchesHandler(l))
		mux.HandleFunc("/admin/v1/matches/", adminMatchHandler(l))
	} else {
		logger.Info("admin endpoints disabled (HT_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("HT_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	wsSrv := ws.NewServer(ws.Config{
		Lobby:  l,
		Hub:    hub,
		Logger: logger.Named("ws"),
		Params: protocol.MatchParams{
			Width:        tune.Grid.Width,
			Height:       tune.Grid.Height,
			StartingGold: tune.StartingGold,
			GoldPerTurn:  tune.GoldPerTurn,
		},
		Digests: protocol.CatalogDigests{
			Units:        protocol.DigestRef{Digest: cats.Units.DefsDigest, Count: len(cats.Units.Defs)},
			TuningDigest: tune.Digest(),
		},
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening",
		zap.String("addr", *addr),
		zap.Int("grid_width", tune.Grid.Width),
		zap.Int("grid_height", tune.Grid.Height),
		zap.Int("units", len(cats.Units.Defs)),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	return logger.Named("server")
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

func metricsHandler(l *lobby.Lobby, hub *ws.Hub, idx runtimeIndex, rec *fanoutRecorder) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		open, active := l.Counts()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP hextactics_matches Matches by table.\n")
		fmt.Fprintf(rw, "# TYPE hextactics_matches gauge\n")
		fmt.Fprintf(rw, "hextactics_matches{table=%q} %d\n", "open", open)
		fmt.Fprintf(rw, "hextactics_matches{table=%q} %d\n", "active", active)

		fmt.Fprintf(rw, "# HELP hextactics_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE hextactics_clients gauge\n")
		fmt.Fprintf(rw, "hextactics_clients %d\n", hub.Connected())

		if rec != nil {
			fmt.Fprintf(rw, "# HELP hextactics_archives_total Match archives written.\n")
			fmt.Fprintf(rw, "# TYPE hextactics_archives_total counter\n")
			fmt.Fprintf(rw, "hextactics_archives_total %d\n", rec.archived.Load())
			fmt.Fprintf(rw, "# HELP hextactics_archive_dropped_total Archives dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE hextactics_archive_dropped_total counter\n")
			fmt.Fprintf(rw, "hextactics_archive_dropped_total %d\n", rec.dropArchive.Load())
		}

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP hextactics_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE hextactics_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "hextactics_index_queue_depth %d\n", s.QueueDepth)
			fmt.Fprintf(rw, "# HELP hextactics_index_dropped_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE hextactics_index_dropped_total counter\n")
			fmt.Fprintf(rw, "hextactics_index_dropped_total{kind=%q} %d\n", "turn", s.DropTurnTotal)
			fmt.Fprintf(rw, "hextactics_index_dropped_total{kind=%q} %d\n", "result", s.DropResultTotal)
			fmt.Fprintf(rw, "hextactics_index_dropped_total{kind=%q} %d\n", "archive", s.DropArchiveTotal)
		}
	}
}

// adminMatchesHandler lists open and active matches. Local-only.
func adminMatchesHandler(l *lobby.Lobby) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"matches": l.Matches()})
	}
}

// adminMatchHandler serves /admin/v1/matches/<id> as a spectator view.
func adminMatchHandler(l *lobby.Lobby) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/admin/v1/matches/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(rw, r)
			return
		}
		view, err := l.View(id, "")
		if err != nil {
			http.Error(rw, err.Error(), http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(view)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

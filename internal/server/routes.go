package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memorix/internal/config"
	"memorix/internal/dataset"
	"memorix/internal/ledger"
	"memorix/internal/rounds"
)

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Optional database connection
	var lgr ledger.Ledger
	if cfg.DatabaseURL != "" {
		pg, err := ledger.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("[Ledger] Failed to connect: %v (running without ledger)\n", err)
		} else {
			defer pg.Close()
			if err := pg.Migrate(); err != nil {
				log.Printf("[Ledger] Migration failed: %v\n", err)
			}
			lgr = pg
		}
	} else {
		log.Println("[Ledger] DATABASE_URL not set, running without ledger")
	}

	store, err := dataset.Open(cfg.Dataset)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The store takes its final synchronous flush when ctx is cancelled.
	storeDone := make(chan struct{})
	go func() {
		store.Run(ctx)
		close(storeDone)
	}()

	srv := New(cfg, store, lgr, time.Now)
	srv.Rounds = rounds.NewRegistry(time.Now,
		time.Duration(cfg.RoundGraceMs)*time.Millisecond, srv.abandonRound)
	defer srv.Rounds.Close()

	httpSrv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: srv.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Server] Shutdown error: %v\n", err)
		}
	}()

	fmt.Printf("Server listening on http://localhost:%s\n", cfg.Port)
	err = httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	stop()
	<-storeDone
	return err
}

// Handler builds the route table. Split from Run so tests can mount the API
// on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/round/start/infinite", s.handleStartInfinite)
	mux.HandleFunc("POST /api/round/submit/infinite", s.handleSubmitInfinite)
	mux.HandleFunc("POST /api/round/start/daily", s.handleStartDaily)
	mux.HandleFunc("POST /api/round/submit/daily", s.handleSubmitDaily)
	mux.HandleFunc("GET /api/daily/status/{player}", s.handleDailyStatus)
	mux.HandleFunc("GET /api/player/{player}/stats", s.handlePlayerStats)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/live", s.handleLive)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

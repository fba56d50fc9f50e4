package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"github.com/vantagedesk/mira/internal/ai"
	"github.com/vantagedesk/mira/internal/bot"
	"github.com/vantagedesk/mira/internal/config"
	"github.com/vantagedesk/mira/internal/intent"
	"github.com/vantagedesk/mira/internal/servicenow"
	"github.com/vantagedesk/mira/internal/session"
	"github.com/vantagedesk/mira/internal/store"
	"github.com/vantagedesk/mira/internal/ticket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := store.NewBoltStore(cfg.DataDir + "/mira.db")
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer db.Close()

	routes, err := intent.LoadRoutingTable(cfg.RoutingTablePath)
	if err != nil {
		log.Fatalf("routing table: %v", err)
	}

	desk := servicenow.NewClient(cfg.SNInstance, cfg.SNUsername, cfg.SNPassword)
	completer := ai.NewClient(cfg.OpenAIAPIKey, cfg.AnswerModel, cfg.ClassifierModel)
	resolver := ticket.NewResolver(desk)
	orch := bot.NewOrchestrator(desk, completer, resolver, routes, db)

	sessionMgr := session.NewManager()
	handler := bot.NewHandler(orch, desk, sessionMgr, db)

	// Periodic cleanup of stale per-user locks to prevent memory leaks
	maintenance := cron.New()
	if _, err := maintenance.AddFunc("@every 30m", func() {
		sessionMgr.Cleanup(1 * time.Hour)
	}); err != nil {
		log.Fatalf("cron: %v", err)
	}
	maintenance.Start()
	defer maintenance.Stop()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("mira: listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("mira: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("mira: stopped")
}

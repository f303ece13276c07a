package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ledger-api/api"
	"ledger-api/config"
	"ledger-api/db"
	"ledger-api/ledger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal("[ERROR] loading config: " + err.Error())
	}

	var store ledger.Store
	switch cfg.DBDriver {
	case "memory":
		store = db.NewMemoryStore()
	default:
		sqlStore, err := db.OpenSQL(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			log.Fatal("[ERROR] opening store: " + err.Error())
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	engine := ledger.NewEngine(store)
	app := api.NewApp(engine, api.Config{
		JWTSecret:        cfg.JWTSecret,
		IPRateLimit:      cfg.IPRateLimit,
		AccountRateLimit: cfg.AccountRateLimit,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: app.Router(),
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch

		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Println("[ERROR] shutdown: " + err.Error())
		}
	}()

	log.Printf("Server started at http://localhost:%d", cfg.Port)

	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		log.Println("Server closed")
	} else if err != nil {
		log.Fatal(err)
	}
}

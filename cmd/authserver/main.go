// Command authserver runs the authcore HTTP API against the storage backend
// named by STORE_BACKEND.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"

	oa "github.com/panyam/authcore"
	"github.com/panyam/authcore/stores"
	"github.com/panyam/authcore/stores/gae"
	gormstore "github.com/panyam/authcore/stores/gorm"
	"github.com/panyam/authcore/stores/mongo"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg, err := oa.LoadConfig(ctx, nil)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Initialization error: %v", err)
	}
	defer closeStore()

	mailer, err := newMailer(cfg)
	if err != nil {
		log.Fatalf("Mailer error: %v", err)
	}

	svc := oa.NewServiceFromConfig(cfg, users, mailer)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Handler:      handlers.LoggingHandler(os.Stdout, svc.Handler()),
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "backend", cfg.StoreBackend, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting gracefully.")
}

func openStore(ctx context.Context, cfg oa.Config) (oa.UserStore, func(), error) {
	switch cfg.StoreBackend {
	case oa.BackendMongo:
		// Connect also creates the unique indexes
		store, client, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from DB: %v", err)
			}
		}, nil

	case oa.BackendPostgres:
		db, err := gormstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, nil, err
		}
		return gormstore.NewUserStore(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}, nil

	case oa.BackendDatastore:
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("datastore client: %w", err)
		}
		return gae.NewUserStore(client, cfg.DatastoreNamespace), func() { client.Close() }, nil

	case oa.BackendFS:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, err
		}
		return stores.NewFSUserStore(cfg.DataDir), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// newMailer sends real mail when EMAIL is set and logs otherwise.
func newMailer(cfg oa.Config) (oa.Mailer, error) {
	if cfg.SMTPUser == "" {
		slog.Warn("EMAIL not set, mail will be logged instead of sent")
		return &oa.ConsoleMailer{}, nil
	}
	return oa.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
}

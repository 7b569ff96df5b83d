package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vessel-tracker/src/config"
	"vessel-tracker/src/interfaces"
	"vessel-tracker/src/logger"
	"vessel-tracker/src/persistence"
	"vessel-tracker/src/server"
	"vessel-tracker/src/session"
	"vessel-tracker/src/storage"
	"vessel-tracker/src/stream"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.Name)

	// 2. Local archive (optional)
	var db interfaces.IDatabase

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(config.MConfig, appLogger)
	case "sqlite":
		db, err = storage.NewAsyncSQLiteDB(config.MConfig, appLogger)
	case "":
		appLogger.WarningOnce("archive", "No local archive configured; /api/positions disabled")
	default:
		appLogger.Critical("Unsupported db_type: %s", config.Storage.DBType)
	}

	if err != nil {
		appLogger.Critical("Failed to init archive: %v", err)
	}
	if db != nil {
		if err := db.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate archive: %v", err)
		}
		if err := db.CleanupOldData(); err != nil {
			appLogger.Warning("Archive cleanup failed: %v", err)
		}
	}

	// 3. Session manager and persistence path
	sess := session.NewManager(config.MConfig, appLogger)
	recorder := persistence.NewRecorder(config.MConfig, sess, db, appLogger)

	// 4. Stream connection
	conn := stream.NewConnection(config.MConfig, stream.NewGorillaTransport(), recorder, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conn.Start(ctx); err != nil {
		appLogger.Critical("Failed to start stream connection: %v", err)
	}

	// 5. Shutdown handling
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		appLogger.Info("Received signal %v, shutting down", sig)
		conn.Stop()
		if db != nil {
			db.Close()
		}
		cancel()
		os.Exit(0)
	}()

	// 6. Status server (blocks)
	srv := server.NewStatusServer(config.MConfig, conn, db, appLogger)
	if err := srv.Start(); err != nil {
		appLogger.Critical("Status server stopped: %v", err)
	}
}

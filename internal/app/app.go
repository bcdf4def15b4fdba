// Package app wires the process together: logging router, durable
// store, leaderboard, room manager and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"walnut-woods/server/config"
	"walnut-woods/server/internal/leaderboard"
	servernet "walnut-woods/server/internal/net"
	"walnut-woods/server/internal/room"
	"walnut-woods/server/internal/store"
	"walnut-woods/server/logging"
	loggingSinks "walnut-woods/server/logging/sinks"
)

type Config struct {
	Logger *log.Logger
}

func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	logCfg := logging.DefaultConfig()
	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsoleSink(os.Stdout, logCfg.Console),
	}
	if path := os.Getenv("LOG_JSON_PATH"); path != "" {
		logCfg.JSON.FilePath = path
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
		jsonSink, err := loggingSinks.NewJSONSink(logCfg.JSON)
		if err != nil {
			return fmt.Errorf("failed to open json log sink: %w", err)
		}
		sinks["json"] = jsonSink
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, logger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	stateDir := os.Getenv("STATE_DIR")
	if stateDir == "" {
		stateDir = "data"
	}
	st, err := store.Open(stateDir)
	if err != nil {
		return fmt.Errorf("failed to open state store at %s: %w", stateDir, err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Printf("failed to close state store: %v", cerr)
		}
	}()

	board := leaderboard.New(st)

	template := room.DefaultConfig("", 0)
	template.Store = st
	template.Board = board
	template.Publisher = router
	template.Logger = logger

	if raw := os.Getenv("WORLD_SEED"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			template.Seed = value
		} else {
			logger.Printf("invalid WORLD_SEED=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			template.TickRate = value
		} else {
			logger.Printf("invalid TICK_RATE=%q: %v", raw, err)
		}
	}

	tuningPath := os.Getenv("TUNING_FILE")
	if tuningPath == "" {
		tuningPath = filepath.Join("config", "tuning.json")
	}
	tuning, err := config.Load(tuningPath)
	if err != nil {
		return fmt.Errorf("failed to load tuning: %w", err)
	}
	template = tuning.Apply(template)

	manager := room.NewManager(template)
	defer manager.StopAll()

	handler := servernet.NewHTTPHandler(manager, servernet.HTTPHandlerConfig{
		ClientDir:   os.Getenv("CLIENT_DIR"),
		AdminSecret: os.Getenv("ADMIN_SECRET"),
		Board:       board,
		Logger:      logger,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Printf("server listening on %s", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}

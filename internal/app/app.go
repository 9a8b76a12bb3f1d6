package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	server "ft-transcendence/server"
	servernet "ft-transcendence/server/internal/net"
	"ft-transcendence/server/logging"
	loggingSinks "ft-transcendence/server/logging/sinks"
)

type Config struct {
	Addr   string
	Logger *log.Logger
}

// Run assembles the logging router, the hub, and the HTTP surface, then
// serves until ctx is cancelled. Shutdown drains in-flight requests and
// tears down every live match before returning.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	addr := cfg.Addr
	if addr == "" {
		addr = os.Getenv("MATCH_HUB_ADDR")
	}
	if addr == "" {
		addr = ":8080"
	}

	logConfig := logging.DefaultConfig()
	if raw := os.Getenv("LOG_SINKS"); raw != "" {
		logConfig.EnabledSinks = logging.ParseSinkList(raw)
	}

	var namedSinks []logging.NamedSink
	var jsonFile *os.File
	if logConfig.HasSink("console") {
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "console",
			Sink: loggingSinks.NewConsole(os.Stdout, logConfig.Console),
		})
	}
	if logConfig.HasSink("json") {
		path := logConfig.JSON.FilePath
		if raw := os.Getenv("LOG_JSON_PATH"); raw != "" {
			path = raw
		}
		if path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open json log file: %w", err)
			}
			jsonFile = f
			namedSinks = append(namedSinks, logging.NamedSink{
				Name: "json",
				Sink: loggingSinks.NewJSON(f, logConfig.JSON.FlushInterval),
			})
		}
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
		if jsonFile != nil {
			jsonFile.Close()
		}
	}()

	hubCfg := server.DefaultHubConfig()
	hubCfg.Logger = logger
	if raw := os.Getenv("FORFEIT_GRACE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			hubCfg.ForfeitGrace = time.Duration(value) * time.Second
		} else {
			logger.Printf("invalid FORFEIT_GRACE_SECONDS=%q: %v", raw, err)
		}
	}

	hub := server.NewHubWithConfig(hubCfg, router)
	defer hub.Stop()

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger:    logger,
		Publisher: router,
	})

	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("match hub listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

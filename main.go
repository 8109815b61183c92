package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/facebox/internal/detector"
	"github.com/example/facebox/internal/handlers"
	"github.com/example/facebox/internal/imageloader"
	"github.com/example/facebox/internal/logging"
	"github.com/example/facebox/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cascadePath := getEnv("CASCADE_PATH", "cascade/facefinder")
	det, err := detector.NewFromFile(cascadePath)
	if err != nil {
		logger.Fatal("failed to load face detector",
			zap.Error(err), zap.String("cascade_path", cascadePath))
	}

	fetchTimeout := time.Duration(getEnvAsInt("FETCH_TIMEOUT_SECONDS", 10)) * time.Second
	loader := imageloader.NewLoader(&http.Client{Timeout: fetchTimeout}, logger)

	maxPixels := getEnvAsInt("MAX_PIXELS", usecase.DefaultMaxPixels)
	uc := usecase.NewDetectionUseCase(loader, det, maxPixels, logger)

	router := handlers.NewRouter(uc, logger)

	addr := ":" + getEnv("PORT", "8080")
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	logger.Info("face detection API listening",
		zap.String("addr", addr),
		zap.Int("max_pixels", maxPixels))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wearly/tryon-embed/internal/config"
	"github.com/wearly/tryon-embed/internal/logging"
	"github.com/wearly/tryon-embed/internal/provider"
	httptransport "github.com/wearly/tryon-embed/internal/transport/http"
	"github.com/wearly/tryon-embed/web"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	providerClient := provider.New(provider.Deps{
		APIURL:          cfg.ProviderAPIURL,
		AccessKeyID:     cfg.ProviderAccessKeyID,
		AccessKeySecret: cfg.ProviderAccessSecret,
		Logger:          logger,
	})

	embedScript, err := web.BootstrapScript(web.ScriptParams{
		EmbedDomain:     cfg.EmbedDomain,
		TriggerSelector: cfg.EmbedTriggerSelector,
	})
	if err != nil {
		log.Fatalf("render embed script failed: %v", err)
	}

	handler := httptransport.NewRouter(httptransport.Deps{
		Jobs:             providerClient,
		Status:           providerClient,
		EmbedScript:      embedScript,
		Logger:           logger,
		SubmitRatePerMin: cfg.SubmitRatePerMin,
		Version:          Version,
		Commit:           Commit,
		BuildDate:        BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("relay listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}

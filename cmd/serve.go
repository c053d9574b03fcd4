package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/bnema/gatewayd/internal/acmeshim"
	"github.com/bnema/gatewayd/internal/certorch"
	"github.com/bnema/gatewayd/internal/certstore"
	"github.com/bnema/gatewayd/internal/config"
	"github.com/bnema/gatewayd/internal/controlplane"
	"github.com/bnema/gatewayd/internal/eventbus"
	"github.com/bnema/gatewayd/internal/gatewayproxy"
	"github.com/bnema/gatewayd/internal/healthprobe"
	"github.com/bnema/gatewayd/internal/httpfront"
	"github.com/bnema/gatewayd/internal/logging"
	"github.com/bnema/gatewayd/internal/router"
	"github.com/bnema/gatewayd/internal/supervisor"
)

// shutdownGrace bounds how long in-flight requests are allowed to drain
// once a shutdown signal arrives.
const shutdownGrace = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Overload(".env") // missing .env is not an error

	var settings config.Settings
	if err := envconfig.Process(context.Background(), &settings); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if cfgFile != "" {
		settings.ConfigPath = cfgFile
	}

	log := logging.For("cmd")
	log.Info("starting gatewayd", "config", settings.ConfigPath, "http_port", settings.HTTPPort, "https_port", settings.HTTPSPort)

	store := config.NewStore(settings.ConfigPath)
	loaded, err := store.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", settings.ConfigPath, err)
	}

	certSt, err := certstore.New(loaded.Acme.ConfigDir)
	if err != nil {
		return fmt.Errorf("open certificate store: %w", err)
	}

	challengeTable := acmeshim.NewChallengeTable()
	acmeClient := acmeshim.New(loaded.Acme.DirectoryURL, loaded.Email, filepath.Join(loaded.Acme.ConfigDir, "account.key"), challengeTable)

	bus := eventbus.New()
	hostRouter := router.New(bus)
	sup := supervisor.New(bus)
	health := healthprobe.New(bus, nil)
	orch := certorch.New(certSt, acmeClient, hostRouter, "localhost")

	adminToken := loaded.AdminToken
	if settings.AdminToken != "" {
		adminToken = settings.AdminToken
	}
	plane := controlplane.New(store, bus, hostRouter, sup, health, orch, adminToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := plane.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	front := httpfront.New(challengeTable, settings.HTTPSPort, nil)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.HTTPPort),
		Handler: front.Handler(),
	}

	gateway := gatewayproxy.New(hostRouter, sup, health, orch, settings.HTTPSPort, "localhost")
	httpsServer := &http.Server{
		Addr:      fmt.Sprintf(":%d", settings.HTTPSPort),
		Handler:   gateway.Handler(),
		TLSConfig: gateway.TLSConfig(),
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http/acme listener starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http listener: %w", err)
		}
	}()
	go func() {
		log.Info("tls listener starting", "addr", httpsServer.Addr)
		if err := httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("tls listener: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		log.Warn("listener failed, shutting down", "error", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http listener shutdown error", "error", err)
	}
	if err := httpsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("tls listener shutdown error", "error", err)
	}

	log.Info("stopping supervised children")
	sup.StopAll()

	return nil
}

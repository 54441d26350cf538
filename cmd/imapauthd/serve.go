package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/infodancer/imapauth"
	"github.com/infodancer/imapauth/internal/config"
	"github.com/infodancer/imapauth/internal/httpapi"
	"github.com/infodancer/imapauth/internal/logging"
	"github.com/infodancer/imapauth/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// buildAgent wires the authentication agent from the configuration.
func buildAgent(cfg config.Config, logger *slog.Logger, collector metrics.Collector) (*imapauth.Agent, error) {
	prober, err := imapauth.NewIMAPProber(imapauth.ConnConfig{
		Host:               cfg.IMAP.Host,
		Port:               cfg.IMAP.Port,
		Security:           imapauth.Security(cfg.IMAP.Security),
		ConnectTimeout:     cfg.IMAP.Timeout(),
		InsecureSkipVerify: cfg.IMAP.TLSSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	return imapauth.New(imapauth.AgentConfig{
		Policy: imapauth.DomainPolicy{
			Domain:      cfg.Domain.Required,
			StripDomain: cfg.Domain.Strip,
			DomainGroup: cfg.Domain.Group,
		},
		Prober:    prober,
		Logger:    logger,
		Collector: collector,
	})
}

func runServe(cfg config.Config) {
	logger := logging.NewLogger(cfg.LogLevel)

	if !cfg.Listen.Enabled {
		fmt.Fprintln(os.Stderr, "nothing to serve: HTTP endpoint is disabled")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	agent, err := buildAgent(cfg, logger, collector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating agent: %v\n", err)
		os.Exit(2)
	}

	api, err := httpapi.New(httpapi.Config{
		Address:       cfg.Listen.Address,
		MaxConcurrent: cfg.Listen.MaxConcurrent,
		Agent:         agent,
		Logger:        logger,
		Collector:     collector,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating http endpoint: %v\n", err)
		os.Exit(2)
	}

	logger.Info("starting imapauthd",
		"imap", cfg.IMAP.Host,
		"security", cfg.IMAP.Security,
		"listen", cfg.Listen.Address)

	if err := api.Start(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("imapauthd stopped")
}

package commands

import (
	"fmt"

	"bank-dashboard/pkg/backend"
	"bank-dashboard/pkg/config"
	"bank-dashboard/pkg/link"
	"bank-dashboard/pkg/logging"
	promcollector "bank-dashboard/pkg/metrics/prometheus"
	"bank-dashboard/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app is the wired set of components every subcommand works with.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	registry  *prometheus.Registry
	collector *promcollector.PrometheusCollector
	client    *backend.Client
	store     *store.Store
	widget    *link.SessionWidget
	flow      *link.Flow
}

func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	collector := promcollector.NewPrometheusCollector(cfg.Metrics.Namespace)
	if err := collector.Register(registry); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := backend.NewClient(backend.ClientConfig{
		BaseURL:    cfg.Backend.URL,
		Resilience: cfg.Backend.Resilience,
		Metrics:    collector,
		Logger:     logger,
	})

	s := store.New(client, store.Config{Logger: logger, Metrics: collector})

	widget := link.NewSessionWidget(link.WidgetConfig{
		SessionTTL:  cfg.Link.SessionTTL,
		MaxSessions: cfg.Link.MaxSessions,
		Logger:      logger,
	})

	flow := link.NewFlow(client, widget, s, link.Config{Logger: logger, Metrics: collector})

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		collector: collector,
		client:    client,
		store:     s,
		widget:    widget,
		flow:      flow,
	}, nil
}

func (a *app) Close() error {
	return a.widget.Close()
}

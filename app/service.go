package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mgenrique/ess-controller/api/schedule"
	"github.com/mgenrique/ess-controller/config"
	"github.com/mgenrique/ess-controller/core/events"
	"github.com/mgenrique/ess-controller/core/forecast"
	coremetrics "github.com/mgenrique/ess-controller/core/metrics"
	coremon "github.com/mgenrique/ess-controller/core/monitoring"
	"github.com/mgenrique/ess-controller/core/orchestrator"
	"github.com/mgenrique/ess-controller/core/prediction"
	"github.com/mgenrique/ess-controller/infra/forecastsolar"
	"github.com/mgenrique/ess-controller/infra/influx"
	"github.com/mgenrique/ess-controller/infra/kvstore"
	"github.com/mgenrique/ess-controller/infra/logger"
	"github.com/mgenrique/ess-controller/infra/metrics"
	"github.com/mgenrique/ess-controller/infra/monitoring"
	"github.com/mgenrique/ess-controller/infra/mqtt"
	"github.com/mgenrique/ess-controller/infra/prices"
	"github.com/mgenrique/ess-controller/internal/eventbus"
)

// Service wires the collaborators around the orchestrator.
type Service struct {
	Orchestrator *orchestrator.Orchestrator

	cfg    *config.Config
	log    logger.Logger
	bus    *eventbus.TypedBus[events.Event]
	sink   coremetrics.MetricsSink
	mqtt   *mqtt.PahoClient
	reader *influx.Reader
	cache  *kvstore.SQLiteStore
}

// New creates a Service from the configuration. It connects to the broker
// and opens the cache.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	oc, err := cfg.Scheduler.Orchestrator(cfg.Installation)
	if err != nil {
		return nil, err
	}

	cache, err := kvstore.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	solar := forecastsolar.New(cfg.ForecastSolar, cache, logger.New("forecast_solar"), oc.Location)
	reader := influx.NewReader(cfg.Influx, logger.New("influx"))

	demand, err := prediction.New(cfg.Demand, reader)
	if err != nil {
		_ = cache.Close()
		reader.Close()
		return nil, fmt.Errorf("demand forecaster: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = cache.Close()
		reader.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		_ = cache.Close()
		reader.Close()
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	mcfg := client.Config()
	publisher := mqtt.NewPublisher(client, mcfg.TopicPrefix, mcfg.DiscoveryPrefix)
	if err := publisher.PublishDiscovery(); err != nil {
		logg.Warnf("discovery: %v", err)
	}
	store := prices.NewStore()
	if err := mqtt.SubscribePrices(client, store, cfg.Prices.BuyTopic, cfg.Prices.SellTopic, logger.New("prices"), nil); err != nil {
		client.Disconnect()
		_ = cache.Close()
		reader.Close()
		return nil, fmt.Errorf("price subscription: %w", err)
	}

	bus := eventbus.NewTyped[events.Event]()
	orch, err := orchestrator.New(oc, orchestrator.Dependencies{
		Prices:    store,
		Solar:     solar,
		Battery:   reader,
		Demand:    demand,
		Corrector: &forecast.HistoryCorrector{Source: reader, Days: cfg.Scheduler.CorrectionDays},
		Publisher: publisher,
		Logger:    logger.New("orchestrator"),
		Monitor:   mon,
		Bus:       bus,
	})
	if err != nil {
		client.Disconnect()
		_ = cache.Close()
		reader.Close()
		return nil, err
	}

	return &Service{
		Orchestrator: orch,
		cfg:          cfg,
		log:          logg,
		bus:          bus,
		sink:         sink,
		mqtt:         client,
		reader:       reader,
		cache:        cache,
	}, nil
}

// Run starts the orchestrator, the metrics collector and the HTTP servers
// and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	collected := coremetrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if addr := s.cfg.API.Addr; addr != "" {
		go func() {
			if err := schedule.Serve(ctx, addr, s.Orchestrator, s.cfg.API.Token, logger.New("api")); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	s.log.Infof("service started")
	s.Orchestrator.Run(ctx)
	<-collected
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.mqtt.Disconnect()
	s.reader.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	return s.cache.Close()
}

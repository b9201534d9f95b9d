// Package app wires the configured components into a running service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/voltmesh/cso/config"
	"github.com/voltmesh/cso/core/dispatch"
	"github.com/voltmesh/cso/core/flush"
	"github.com/voltmesh/cso/core/hierarchy"
	coremetrics "github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
	"github.com/voltmesh/cso/infra/logger"
	"github.com/voltmesh/cso/infra/metrics"
	"github.com/voltmesh/cso/infra/mqtt"
	"github.com/voltmesh/cso/internal/eventbus"
)

// Service orchestrates the hierarchy, the dispatcher and the flush
// engine.
type Service struct {
	Operator   *hierarchy.Operator
	Dispatcher *dispatch.Dispatcher
	Engine     *flush.Engine

	client      *mqtt.Client
	bus         eventbus.EventBus
	sink        coremetrics.MetricsSink
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	bus := eventbus.New()

	operator, err := cfg.Topology.Build(cfg.Hierarchy)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	var client *mqtt.Client
	var remote roaming.RemoteOperator
	if cfg.MQTT.Broker != "" {
		client, err = mqtt.NewClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		remote = client
	} else {
		logg.Warnf("no broker configured, commands are handled locally only")
	}

	dispatcher, err := dispatch.New(operator, remote, bus, sink, logg, cfg.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	svc := &Service{
		Operator:    operator,
		Dispatcher:  dispatcher,
		client:      client,
		bus:         bus,
		sink:        sink,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}

	if client != nil {
		updates := flush.NewUpdateLog()
		cdrs := flush.NewCDRQueue()
		adapter, err := mqtt.NewAdapter(client, operator, updates, cdrs, cfg.MQTT.TopicPrefix+"/push", logg)
		if err != nil {
			return nil, fmt.Errorf("flush adapter: %w", err)
		}
		engine, err := flush.NewEngine(adapter, bus, sink, logg, cfg.Flush)
		if err != nil {
			return nil, fmt.Errorf("flush engine: %w", err)
		}
		svc.Engine = engine

		// Every property change below the operator lands in the update
		// log and goes out with the next data flush.
		operator.OnPropertyChange(func(ch hierarchy.PropertyChange) {
			updates.Record(flush.PropertyUpdate{
				EntityID:  ch.EntityID,
				Property:  ch.Property,
				Old:       ch.Old,
				New:       ch.New,
				Timestamp: ch.Timestamp,
			})
		})
		go collectCDRs(dispatcher.CDRStream(), cdrs)
	}

	return svc, nil
}

// collectCDRs moves produced charge detail records into the flush
// backlog.
func collectCDRs(stream <-chan model.ChargeDetailRecord, cdrs *flush.CDRQueue) {
	for cdr := range stream {
		cdrs.Push(cdr)
	}
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.promEnabled {
		metrics.StartPromServer(ctx, s.promPort, s.log)
	}
	if s.Engine != nil {
		if err := s.Engine.Start(ctx); err != nil {
			return err
		}
	}
	s.log.Infof("service started, %d evses managed", len(s.Operator.EVSEs()))
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.Engine != nil {
		s.Engine.Stop()
	}
	if b, ok := s.bus.(*eventbus.Bus); ok {
		if n := b.Dropped(); n > 0 {
			s.log.Debugf("event bus dropped %d events", n)
		}
	}
	s.bus.Close()
	if s.client != nil {
		s.client.Disconnect()
		// let the in-flight publishes settle
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

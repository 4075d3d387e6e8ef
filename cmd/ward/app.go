package main

import (
	"fmt"

	"github.com/wardlabs/ward/actions"
	"github.com/wardlabs/ward/audit"
	"github.com/wardlabs/ward/bus"
	"github.com/wardlabs/ward/config"
	"github.com/wardlabs/ward/connectors"
	"github.com/wardlabs/ward/detector"
	"github.com/wardlabs/ward/engine"
	"github.com/wardlabs/ward/review"
	"github.com/wardlabs/ward/risk"
	"github.com/wardlabs/ward/storage"
)

// app wires the full governance stack from a loaded configuration.
type app struct {
	cfg        *config.Config
	store      *storage.Store
	auditLog   *audit.Log
	bus        *bus.Bus
	revoker    connectors.Revoker
	connectors []connectors.Connector
	detector   *detector.Detector
	engine     *engine.Engine
	reviews    *review.Manager
}

// newApp builds and wires every component. The engine is subscribed to the
// bus before any connector can publish.
func newApp(cfg *config.Config) (*app, error) {
	store, err := storage.Open(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	auditLog, err := audit.Open(cfg.AuditDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	eventBus := bus.New()
	revoker := connectors.NewLoggingRevoker()

	registry := actions.NewRegistry()
	actions.RegisterBuiltins(registry, store, revoker)

	eng := engine.New(store, eventBus, registry, auditLog)
	eng.Start()

	conns, err := buildConnectors(cfg)
	if err != nil {
		auditLog.Close()
		store.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		store:      store,
		auditLog:   auditLog,
		bus:        eventBus,
		revoker:    revoker,
		connectors: conns,
		detector:   detector.New(store, eventBus, risk.NewTableAnalyzer()),
		engine:     eng,
		reviews:    review.NewManager(store, eventBus, revoker, auditLog),
	}, nil
}

// buildConnectors instantiates the configured connectors through the
// connector registry.
func buildConnectors(cfg *config.Config) ([]connectors.Connector, error) {
	registry := connectors.NewRegistry()
	registry.Register("static", func(c connectors.Config) (connectors.Connector, error) {
		return connectors.NewStaticConnector("static", nil, nil, nil), nil
	})

	var conns []connectors.Connector
	for _, cc := range cfg.Connectors {
		conn, err := registry.Get(cc.Name, connectors.Config{
			TenantDomain: cc.TenantDomain,
			ClientID:     cc.ClientID,
			ClientSecret: cc.ClientSecret,
			APIEndpoint:  cc.APIEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("build connector %s: %w", cc.Name, err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// close releases the app's resources.
func (a *app) close() {
	if a.auditLog != nil {
		_ = a.auditLog.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

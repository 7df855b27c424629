package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/relay_layer/internal/app/events"
	banksvc "github.com/R3E-Network/relay_layer/internal/app/services/bank"
	registrysvc "github.com/R3E-Network/relay_layer/internal/app/services/registry"
	relaysvc "github.com/R3E-Network/relay_layer/internal/app/services/relay"
	"github.com/R3E-Network/relay_layer/internal/app/storage"
	"github.com/R3E-Network/relay_layer/internal/app/storage/memory"
	"github.com/R3E-Network/relay_layer/internal/app/system"
	"github.com/R3E-Network/relay_layer/internal/chain"
	"github.com/R3E-Network/relay_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Relay    storage.RelayStore
	Registry storage.RegistryStore
	Bank     storage.BankStore
}

// Config carries the application-level settings.
type Config struct {
	LocalChain    uint32
	Admin         string
	SweepSchedule string
}

// Application ties the relay services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Relay    *relaysvc.Service
	Registry *registrysvc.Service
	Bank     *banksvc.Service
	Events   *events.Bus
}

// New builds a fully initialised application with the provided stores and
// height source. A nil height source defaults to a static source at height 0.
func New(cfg Config, stores Stores, heights relaysvc.HeightSource, log *logger.Logger) (*Application, error) {
	if cfg.Admin == "" {
		return nil, fmt.Errorf("admin identity is required")
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Relay == nil {
		stores.Relay = mem
	}
	if stores.Registry == nil {
		stores.Registry = mem
	}
	if stores.Bank == nil {
		stores.Bank = mem
	}
	if heights == nil {
		heights = chain.NewStaticSource(0)
	}

	manager := system.NewManager()
	bus := events.NewBus(log)

	registryService := registrysvc.New(stores.Registry, cfg.Admin, log)
	bankService := banksvc.New(stores.Bank, log)
	relayService := relaysvc.New(registryService, stores.Relay, heights, bus, relaysvc.Config{
		LocalChain: cfg.LocalChain,
		Admin:      cfg.Admin,
	}, log)

	for _, name := range []string{"registry", "bank", "relay"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	sweeper := relaysvc.NewSweeper(relayService, cfg.SweepSchedule, log)
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
	}

	return &Application{
		manager:  manager,
		log:      log,
		Relay:    relayService,
		Registry: registryService,
		Bank:     bankService,
		Events:   bus,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Package app composes the relay layer into a running application.
//
// The package wires the relay, registry, and bank services to a shared store
// and an event bus, and manages their lifecycle through the system manager.
// Business rules live in the service packages; this layer only assembles them.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── message/        # Cross-chain messages and the error taxonomy
//	│   ├── registry/       # Chains and adapters
//	│   └── bank/           # Fee accounts
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # RelayStore, RegistryStore, BankStore
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic (relay engine, registry, bank)
//	├── events/             # Message-sent / message-received notifications
//	├── httpapi/            # REST surface plus the websocket event feed
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus instrumentation
//
// The dependency flow is cmd/relayd -> internal/app -> services -> storage;
// domain packages sit at the bottom and import nothing above them.
package app

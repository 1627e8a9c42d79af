// Package app composes the purchase layer into a running application.
//
// The package wires the chain contract bindings, the purchase journal store
// and the services together, and manages their lifecycle. Business logic
// lives in the service packages; pure data and rules live under domain/.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Pure models and rules
//	│   ├── lottery/        # Round snapshots, ticket numbers
//	│   ├── pricing/        # Bulk discount math
//	│   └── purchase/       # Flow state machine, quantity validation
//	├── services/           # Round cache, balance watcher, quotes, flow
//	├── storage/            # Purchase journal interfaces and backends
//	├── httpapi/            # REST handlers
//	├── system/             # Service lifecycle manager
//	└── metrics/            # Prometheus collectors
package app

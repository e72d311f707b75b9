// Package app composes the choperia services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (mesa, pedido, catalog, estoque, ...)
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # One interface per aggregate plus Transactor
//	│   ├── memory/         # In-memory implementation (default, tests)
//	│   └── postgres/       # sqlx implementation with embedded migrations
//	├── services/           # Business rules, one package per area
//	├── httpapi/            # REST handlers and routing
//	├── seed/               # Idempotent default data
//	├── system/             # Lifecycle manager and cron runner
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/choperia
//	      │
//	      ▼
//	internal/app (composition)
//	      │
//	      ├──► services/* ──► storage interfaces ──► domain
//	      │
//	      └──► storage/memory | storage/postgres
//
// Services never import httpapi or a concrete store. Nil stores passed to New
// fall back to the in-memory implementation, so the whole application runs
// without a database.
package app

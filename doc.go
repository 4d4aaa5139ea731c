// Package mdm is a master data management catalog backend.
//
// # Overview
//
// MDM stores the building blocks of a product catalog and keeps them
// consistent with each other: attributes, attribute groups, families,
// categories, item types, items, associations and typed relationships.
// Every change is recorded in an append-only history with a field level
// diff and a localized summary.
//
// The platform consists of three main layers:
//   - API Server: REST API served with Echo under /api
//   - Catalog Services: validation, hierarchy rules and derived attribute sets
//   - Storage Layer: CouchDB (through EVE) or an in-memory backend
//
// # Architecture
//
//	┌─────────────────┐
//	│  API Server     │
//	│  (Echo REST)    │
//	└────────┬────────┘
//	         │
//	┌────────▼────────┐       ┌─────────────────┐
//	│  Catalog        │◄──────┤  Entity         │
//	│  Services       │       │  Registry       │
//	└────────┬────────┘       │  (Redis cache)  │
//	         │                └─────────────────┘
//	┌────────▼────────┐
//	│  Storage Layer  │
//	│  (EVE/CouchDB)  │
//	└─────────────────┘
//
// # Core Features
//
// Catalog:
//   - Typed attributes with per-type validation rules
//   - Attribute groups shared by families and categories
//   - Family and category trees with a one-to-one family link
//   - Derived attribute sets resolved through the hierarchy
//
// History:
//   - Append-only change log per entity
//   - Field level diffs with localized summaries
//
// Relationships:
//   - Typed, directional links between any two catalog entities
//   - Status lifecycle and per-entity lookups
//
// Integrity:
//   - Scan for dangling references and broken back pointers
//   - Repair plans with dry-run support
//
// # Usage
//
// Start the API server:
//
//	mdm server --config config.yaml
//
// Write a default configuration file:
//
//	mdm config init config.yaml
//
// Scan the catalog for broken references:
//
//	mdm integrity scan
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (--config)
//   - Environment variables (MDM_ prefix)
//
// Example configuration:
//
//	server:
//	  host: 0.0.0.0
//	  port: 5000
//	storage:
//	  backend: couchdb
//	couchdb:
//	  url: http://localhost:5984
//	  database: mdm
//	redis:
//	  url: redis://localhost:6379/0
//	security:
//	  auth_enabled: true
//	catalog:
//	  default_language: tr
//
// # API Endpoints
//
// Catalog:
//   - /api/attributes, /api/attributeGroups
//   - /api/categories, /api/families
//   - /api/ItemTypes, /api/items, /api/associations
//
// Relationships:
//   - /api/relationships, /api/relationship-types
//
// History and maintenance:
//   - GET  /api/history, /api/history/:entityId
//   - GET  /api/integrity/scan
//   - POST /api/integrity/repair
//
// Authentication:
//   - POST /api/auth/login, /api/auth/register, /api/auth/refresh-token
//   - GET  /api/auth/me
//
// Swagger documentation is served under /docs.
package mdm

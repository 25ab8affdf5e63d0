// Package integration contains the Integration bounded context of OlieHub.
// It owns the canonical records reconciled from the ERP (Tiny) and the
// storefront (VNDA), and the rules for merging them.
//
// Key concepts:
//   - Order, Product, Customer: canonical records upserted by natural keys
//   - ProductionStage / StatusMapping: runtime-editable ERP status translation
//   - Lifecycle: internal order state machine driven by upstream signals
//   - ConflictRecord: price disagreement between sources awaiting a human decision
//   - SyncLogEntry: append-only audit of every sync attempt
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration

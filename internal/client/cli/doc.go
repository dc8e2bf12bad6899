// Package cli provides the interactive demo command-line client.
//
// It wires configuration, the local store, the request pipeline, and an
// interactive REPL that keeps working offline: reads come from the cache,
// edits queue and sync when connectivity returns.
//
// Key features:
//   - Login / Register / Logout
//   - Profile show and edit, preferences
//   - Tenant branding, status, and feature flags
//   - Pending-queue inspection and a manual online/offline toggle
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli

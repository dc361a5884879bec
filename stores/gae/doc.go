//go:build !wasm
// +build !wasm

// Package gae stores accounts in Google Cloud Datastore.
//
// # Datastore Kinds
//
//   - User: one entity per account, keyed by user id
//   - Email: reservation keyed by the lowercased address, holding the owner id
//   - Username: reservation keyed by the lowercased username
//
// Inserts and updates that touch an email or username write the reservation
// and the User entity in one transaction, which is what makes both unique.
//
// # Namespacing
//
// Pass a namespace to isolate tenants:
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	userStore := gae.NewUserStore(client, "tenant-123")
package gae

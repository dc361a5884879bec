//go:build !wasm
// +build !wasm

// Package gorm stores accounts in a relational database through GORM.
// Production deployments use PostgreSQL (see Open); tests and tools may pass
// any *gorm.DB.
//
// # Database Schema
//
// AutoMigrate creates a single users table. Email and username are unique
// through lowercased key columns, so matching is case-insensitive and rows
// without an email (federated signups) do not collide.
//
// # Usage
//
//	db, _ := gormstore.Open(dsn)
//	_ = gormstore.AutoMigrate(db)
//	userStore := gormstore.NewUserStore(db)
package gorm

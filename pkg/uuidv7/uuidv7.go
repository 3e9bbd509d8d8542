// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// Package uuidv7 generates time-ordered UUIDv7 strings via google/uuid.
//
// Every durable entity in Aegis (accounts, refresh-token records, reset
// records) and every generated request ID is keyed by UUIDv7. Time-sortable
// values keep inserts clustered-index friendly in PostgreSQL under
// login-heavy write load, where random v4 keys fragment the B-tree.
package uuidv7

import "github.com/google/uuid"

// New returns a fresh UUIDv7 string. It panics only when the OS random
// source is unavailable, which is an unrecoverable system-level failure.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("uuidv7: " + err.Error())
	}
	return id.String()
}

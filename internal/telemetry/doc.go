// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records per-request usage statistics in a local SQLite
// database.
//
// One row is stored per chat request: model, timing, fragment and character
// counts, and the outcome. Message content is never stored.
//
// # Key Types
//
//   - Store: the SQLite-backed request log
//   - Record: one request
//   - Summary: totals over all requests
//
// # Usage
//
//	store, err := telemetry.Open(cfg.Telemetry.Path)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	store.Record(ctx, rec)
package telemetry

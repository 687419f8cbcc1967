// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package models defines the domain types shared across the AniMori backend:
// catalog entries, users and their watchlists, generated recommendations, and
// the standard API response envelope.
//
// The package is a leaf dependency. It imports nothing from the rest of the
// application so that storage, engine, and API layers can all share these
// types without import cycles.
package models

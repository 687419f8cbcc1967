// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package recommend implements the AniMori recommendation engine.
//
// The engine produces personalized anime suggestions from two similarity
// signals and a popularity fallback, run as three fixed phases:
//
//  1. Collaborative: find users with correlated rating histories (Pearson
//     over shared rated anime) and surface what they liked.
//  2. Content-based: start from the user's own highly rated anime and
//     surface catalog entries with overlapping genres, moods, and ratings.
//  3. Fallback: fill any remaining slots with the highest rated catalog
//     entries the user has not watched.
//
// Generated recommendations are persisted with a seven-day expiry and served
// read-through: when a user's active set runs low the engine regenerates it,
// coalescing concurrent requests for the same user into a single run.
//
// The engine reaches storage through the DataProvider and Store interfaces,
// keeping it independent of the database package and trivially mockable.
package recommend

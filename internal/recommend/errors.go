// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package recommend

import "errors"

// Sentinel errors returned by the engine and its storage interfaces.
var (
	// ErrUserNotFound indicates the target user does not exist.
	// Generation treats this as fatal.
	ErrUserNotFound = errors.New("user not found")

	// ErrAnimeNotFound indicates a referenced anime does not exist.
	ErrAnimeNotFound = errors.New("anime not found")

	// ErrInsufficientHistory indicates the user has too few rated watchlist
	// entries for meaningful generation. Enforced by callers that expose
	// explicit generation, not by the engine itself.
	ErrInsufficientHistory = errors.New("insufficient rating history")

	// ErrInvalidConfig indicates the engine configuration failed validation.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

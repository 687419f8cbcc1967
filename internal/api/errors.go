// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package api

// API error codes returned in the error envelope.
const (
	codeValidationError     = "VALIDATION_ERROR"
	codeUserNotFound        = "USER_NOT_FOUND"
	codeAnimeNotFound       = "ANIME_NOT_FOUND"
	codeInsufficientHistory = "INSUFFICIENT_HISTORY"
	codeDatabaseError       = "DATABASE_ERROR"
	codeAuthenticationError = "AUTHENTICATION_ERROR"
	codeInternalError       = "INTERNAL_ERROR"
)

// Package redact provides utilities for redacting sensitive information from
// strings before they are logged or returned in error responses. This package
// helps prevent the accidental leakage of API keys, tokens, and other
// sensitive data that might be included in provider URLs and error messages.
package redact

import (
	"regexp"
	"sync"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder      = "[REDACTED]"
	RedactedKeyPlaceholder    = "[REDACTED_KEY]"
	RedactedTokenPlaceholder  = "[REDACTED_TOKEN]"
	RedactedSecretPlaceholder = "[REDACTED_SECRET]"
)

// Precompiled regex patterns
var (
	// API keys passed as URL query parameters, the way Google's generative
	// APIs authenticate. The parameter name survives so URLs stay readable.
	urlKeyRegex = regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token|access_token)=)[^&\s"']+`)

	// Google API keys have a fixed recognizable prefix
	googleKeyRegex = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{30,}\b`)

	// Authorization header style bearer tokens
	bearerRegex = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/]+=*`)

	// Key-value style credentials in messages and dumps
	apiKeyRegex = regexp.MustCompile(
		`(?i)(api[_-]?key|apikey|token|secret|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// All patterns and their replacements. Replacements may reference capture
	// groups to preserve non-sensitive context.
	patterns = []*regexp.Regexp{
		urlKeyRegex, googleKeyRegex, bearerRegex, apiKeyRegex,
	}

	patternReplacements = map[*regexp.Regexp]string{
		urlKeyRegex:    "${1}" + RedactedKeyPlaceholder,
		googleKeyRegex: RedactedKeyPlaceholder,
		bearerRegex:    "${1}" + RedactedTokenPlaceholder,
		apiKeyRegex:    RedactedSecretPlaceholder,
	}

	mu sync.RWMutex
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	mu.RLock()
	defer mu.RUnlock()

	result := input
	for _, pattern := range patterns {
		replacement := RedactionPlaceholder
		if r, ok := patternReplacements[pattern]; ok {
			replacement = r
		}
		result = pattern.ReplaceAllString(result, replacement)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

package claim

import (
	"slices"
	"strings"
)

// Signatures is the rate-limit signature set. It is configuration data so
// new faucet wordings can be added without code changes.
type Signatures struct {
	Statuses []int    `yaml:"statuses"`
	Patterns []string `yaml:"patterns"`
	// TransportPatterns are broader fragments matched only against transport
	// failures, where proxies surface throttling as connection errors.
	TransportPatterns []string `yaml:"transport_patterns"`
}

// DefaultSignatures are the statuses and phrases the IOTA faucets and the
// proxies in front of them are known to answer with when throttling.
var DefaultSignatures = Signatures{
	Statuses: []int{429, 403, 502, 503},
	Patterns: []string{
		"rate limit",
		"too many requests",
		"limit exceeded",
		"already claimed",
		"wait before",
		"cooldown",
		"try again later",
		"quota exceeded",
		"maximum requests",
		"throttled",
		"429",
		"already received",
		"claim limit",
		"daily limit",
		"per day",
		"24 hours",
		"forbidden",
		"blocked",
		"banned",
		"restricted",
	},
	TransportPatterns: []string{"rate", "limit", "429", "403"},
}

// MatchStatus reports whether an HTTP status signals rate limiting.
func (s Signatures) MatchStatus(status int) bool {
	return slices.Contains(s.Statuses, status)
}

// MatchText reports whether text contains any rate-limit phrase.
func (s Signatures) MatchText(text string) bool {
	return containsAny(text, s.Patterns)
}

// MatchTransport reports whether a transport error message signals rate
// limiting.
func (s Signatures) MatchTransport(text string) bool {
	return s.MatchText(text) || containsAny(text, s.TransportPatterns)
}

// Empty reports whether no signature is configured.
func (s Signatures) Empty() bool {
	return len(s.Statuses) == 0 && len(s.Patterns) == 0 && len(s.TransportPatterns) == 0
}

func containsAny(text string, patterns []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

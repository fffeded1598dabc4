package fetch

import (
	"regexp"
	"strings"
)

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^LGTM!?$`),
	regexp.MustCompile(`^\+1$`),
	regexp.MustCompile(`(?i)^:shipit:$`),
	regexp.MustCompile(`(?i)^Ship it!?$`),
}

// isBotLogin reports whether login identifies an automation account.
func isBotLogin(login string) bool {
	return strings.HasSuffix(login, "[bot]") || strings.HasSuffix(login, "-bot")
}

// isNoiseComment reports whether body is a rubber-stamp comment that should
// be dropped before a comment reaches the normaliser.
func isNoiseComment(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return true
	}
	for _, p := range noisePatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

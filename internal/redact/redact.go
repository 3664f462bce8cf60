// Package redact strips sensitive fragments from error strings before they
// are logged. Raw errors can carry connection strings, SQL text, tokens,
// and personal contact details; logs must not.
package redact

import "regexp"

var (
	dbConnRegex   = regexp.MustCompile(`(?i)(postgres|mysql|redis|db|database|connection)://[^@\s]+@`)
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`)
	jwtRegex      = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
	emailRegex    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRegex    = regexp.MustCompile(`\b01[016789]\d{7,8}\b`)
	sqlRegex      = regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[\s\w,*()]+(?:FROM|INTO|SET)(?:[\s\w,*()='"$]+)?`)
	hostPortRegex = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`)
	pathRegex     = regexp.MustCompile(`(/[\w.-]+){2,}`)
)

var replacements = []struct {
	pattern     *regexp.Regexp
	placeholder string
}{
	{dbConnRegex, "[REDACTED_CREDENTIAL]"},
	{passwordRegex, "[REDACTED_CREDENTIAL]"},
	{apiKeyRegex, "[REDACTED_KEY]"},
	{jwtRegex, "[REDACTED_JWT]"},
	{emailRegex, "[REDACTED_EMAIL]"},
	{phoneRegex, "[REDACTED_PHONE]"},
	{sqlRegex, "[REDACTED_SQL]"},
	{hostPortRegex, "[REDACTED_HOST]"},
	{pathRegex, "[REDACTED_PATH]"},
}

// String returns s with every sensitive fragment replaced by a placeholder.
func String(s string) string {
	for _, r := range replacements {
		s = r.pattern.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts an error's message. A nil error yields an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

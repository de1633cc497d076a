package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// SecurityValidator validates URLs and enforces security policies
type SecurityValidator struct {
	config SecurityConfig
}

// NewSecurityValidator creates a new security validator
func NewSecurityValidator(config SecurityConfig) *SecurityValidator {
	return &SecurityValidator{
		config: config,
	}
}

// ValidateURL validates a URL and checks security policies
func (sv *SecurityValidator) ValidateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("Invalid URL format: %s", urlStr),
		}
	}

	switch parsedURL.Scheme {
	case "http", "https":
	case "file":
		if !sv.config.AllowFileUrls {
			sv.logSecurityViolation("file_url_blocked", urlStr)
			return &BrowserError{
				Code:    ErrCodeSecurity,
				Message: "file:// URLs are not allowed",
				Details: map[string]interface{}{
					"url": urlStr,
				},
			}
		}
		return nil
	default:
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("Unsupported URL scheme: %q", parsedURL.Scheme),
		}
	}

	if sv.isLocalhostURL(parsedURL) && !sv.config.AllowLocalhostUrls {
		sv.logSecurityViolation("localhost_url_blocked", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: "localhost URLs are not allowed",
			Details: map[string]interface{}{
				"url": urlStr,
			},
		}
	}

	if len(sv.config.AllowedDomains) > 0 && !sv.isDomainAllowed(parsedURL.Hostname()) {
		sv.logSecurityViolation("domain_not_allowed", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("Domain not in allowed list: %s", parsedURL.Host),
			Details: map[string]interface{}{
				"url":    urlStr,
				"domain": parsedURL.Host,
			},
		}
	}

	if len(sv.config.BlockedDomains) > 0 && sv.isDomainBlocked(parsedURL.Hostname()) {
		sv.logSecurityViolation("domain_blocked", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("Domain is blocked: %s", parsedURL.Host),
			Details: map[string]interface{}{
				"url":    urlStr,
				"domain": parsedURL.Host,
			},
		}
	}

	return nil
}

// isLocalhostURL checks if a URL points to localhost
func (sv *SecurityValidator) isLocalhostURL(parsedURL *url.URL) bool {
	host := strings.ToLower(parsedURL.Hostname())

	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		host == "0.0.0.0" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(host, "localhost.")
}

// isDomainAllowed checks if a domain is in the allowed list
func (sv *SecurityValidator) isDomainAllowed(host string) bool {
	for _, allowed := range sv.config.AllowedDomains {
		if sv.matchDomain(host, allowed) {
			return true
		}
	}
	return false
}

// isDomainBlocked checks if a domain is in the blocked list
func (sv *SecurityValidator) isDomainBlocked(host string) bool {
	for _, blocked := range sv.config.BlockedDomains {
		if sv.matchDomain(host, blocked) {
			return true
		}
	}
	return false
}

// matchDomain checks if a host matches a domain pattern
func (sv *SecurityValidator) matchDomain(host, pattern string) bool {
	if host == pattern {
		return true
	}

	// Wildcard match (*.example.com)
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[2:]
		return strings.HasSuffix(host, "."+suffix) || host == suffix
	}

	// Subdomain match (.example.com matches any subdomain)
	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern) || host == pattern[1:]
	}

	return false
}

// logSecurityViolation logs a security violation
func (sv *SecurityValidator) logSecurityViolation(violationType, details string) {
	log.Warn().
		Str("component", "browser").
		Str("violation", violationType).
		Str("url", details).
		Msg("Security policy violation")
}

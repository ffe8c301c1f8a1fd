package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	codePattern       = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	controlCharacters = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// MaxIdentifierLength bounds tenant IDs, codes and record table names
const MaxIdentifierLength = 64

// ValidateCode validates a snake_case definition, step or record type code
func ValidateCode(kind, code string) error {
	if code == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if len(code) > MaxIdentifierLength {
		return fmt.Errorf("%s exceeds %d characters: %s", kind, MaxIdentifierLength, code)
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%s must be lower snake_case: %q", kind, code)
	}
	return nil
}

// ValidateTenantID validates a tenant identifier taken from a header or catalog
func ValidateTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if len(tenantID) > MaxIdentifierLength {
		return fmt.Errorf("tenant ID exceeds %d characters", MaxIdentifierLength)
	}
	if strings.ContainsAny(tenantID, " \t") || controlCharacters.MatchString(tenantID) {
		return fmt.Errorf("tenant ID contains whitespace or control characters: %q", tenantID)
	}
	return nil
}

// SanitizeString removes control characters from free text such as comments
func SanitizeString(s string) string {
	return controlCharacters.ReplaceAllString(s, "")
}

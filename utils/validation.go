// utils/validation.go
package utils

import (
	"log"
	"regexp"
	"strings"
)

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	// Clean the phone number
	cleaned := strings.ReplaceAll(phone, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, "(", "")
	cleaned = strings.ReplaceAll(cleaned, ")", "")

	// Regular expression for international phone numbers
	// Allows + prefix followed by 7-15 digits
	regex := `^\+?[1-9]\d{1,14}$`
	match, _ := regexp.MatchString(regex, cleaned)
	return match
}

// ParseAdminPhones splits the comma-separated ADMIN_PHONES value, dropping
// blanks and anything that is not a plausible international number.
func ParseAdminPhones(raw string) []string {
	var phones []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !ValidatePhone(p) {
			log.Printf("Ignoring invalid admin phone %q", p)
			continue
		}
		phones = append(phones, p)
	}
	return phones
}

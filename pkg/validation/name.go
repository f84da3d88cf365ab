// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-supplied identifiers before they reach a
// storage key or SQL parameter.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxNameLength bounds build names.
const MaxNameLength = 128

// namePattern allows letters, digits, spaces, dots, underscores and
// hyphens, starting with a letter or digit.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._\-]*$`)

// ValidateName checks a build name.
//
// Valid names:
//   - 1-128 bytes
//   - Start with a letter or digit
//   - Contain only letters, digits, spaces, dots, underscores and hyphens
//   - Have no trailing space
//
// Example:
//
//	if err := validation.ValidateName(name); err != nil {
//	    return fmt.Errorf("save build: %w", err)
//	}
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name is %d bytes (max %d)", len(name), MaxNameLength)
	}
	if strings.HasSuffix(name, " ") || !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name format: %q (letters, digits, spaces, dots, underscores or hyphens)", name)
	}
	return nil
}

// ValidateNames validates several names and lists every one that failed.
func ValidateNames(names []string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			invalid = append(invalid, n)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid names: %q", invalid)
	}
	return nil
}

// SanitizeName trims surrounding space and validates the result.
func SanitizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := ValidateName(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

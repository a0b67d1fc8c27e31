package errors

import (
	"strings"
	"unicode"
)

// ValidateFeatureID validates a feature identifier.
// Feature ids become map keys, state-bag keys, and UI correlation tags, so
// the rules are intentionally conservative:
//   - No empty ids
//   - No control characters or whitespace
//   - Maximum length of 128 characters
func ValidateFeatureID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidFeature, "feature id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidFeature, "feature id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidFeature, "feature id contains control characters")
		}
		if unicode.IsSpace(r) {
			return New(ErrCodeInvalidFeature, "feature id contains whitespace")
		}
	}

	return nil
}

// ValidateViewName validates a saved-view name for safe use as a filename.
// It ensures the name is a simple basename without path components.
func ValidateViewName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidView, "view name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidView, "view name too long (max 128 characters)")
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidView, "view name cannot contain path separators")
	}

	if strings.HasPrefix(name, ".") {
		return New(ErrCodeInvalidView, "view name cannot be a hidden file")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidView, "view name contains control characters")
		}
	}

	return nil
}

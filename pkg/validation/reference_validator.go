// Package validation checks client-supplied image references and uploads.
package validation

import (
	"net/url"
	"path/filepath"
	"strings"

	apperrors "go-shelf-inspector/internal/errors"
)

// AllowedUploadExtensions are the photo formats accepted from clients.
var AllowedUploadExtensions = []string{".jpg", ".jpeg", ".png"}

// ReferenceValidator handles image reference validation logic
type ReferenceValidator struct {
	allowedSchemes []string
	allowedHosts   []string
	allowLocal     bool
}

// NewReferenceValidator accepts http, https and azblob references on any host.
// Local paths are rejected since references usually come from remote clients.
func NewReferenceValidator() *ReferenceValidator {
	return &ReferenceValidator{
		allowedSchemes: []string{"http", "https", "azblob"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewReferenceValidatorWithOptions creates a validator with custom options
func NewReferenceValidatorWithOptions(schemes []string, hosts []string, allowLocal bool) *ReferenceValidator {
	return &ReferenceValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
		allowLocal:     allowLocal,
	}
}

// ValidateReference validates if the provided reference is acceptable for analysis
func (v *ReferenceValidator) ValidateReference(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return apperrors.NewValidationError("image reference cannot be empty", nil)
	}

	if !strings.Contains(ref, "://") {
		if !v.allowLocal {
			return apperrors.NewValidationError("local image paths are not allowed", nil)
		}
		return ValidateUploadName(ref)
	}

	parsedURL, err := url.Parse(ref)
	if err != nil {
		return apperrors.NewValidationError("invalid image reference format", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme == "file" {
		if !v.allowLocal {
			return apperrors.NewValidationError("local image paths are not allowed", nil)
		}
		return ValidateUploadName(parsedURL.Path)
	}

	if !contains(v.allowedSchemes, scheme) {
		return apperrors.NewValidationError("reference scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("reference must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !contains(v.allowedHosts, parsedURL.Hostname()) {
		return apperrors.NewValidationError("reference host not allowed", nil)
	}

	return nil
}

// ValidateUploadName accepts file names with a .jpg, .jpeg or .png extension.
func ValidateUploadName(name string) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if contains(AllowedUploadExtensions, ext) {
		return nil
	}
	return apperrors.NewValidationError("only .jpg, .jpeg and .png images are accepted", nil).
		WithDetails("file: " + name)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if s == item {
			return true
		}
	}
	return false
}

package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateCoordinate checks that lat/lng form a usable geographic position.
// Web-Mercator is undefined at the poles, so latitudes are limited to its
// practical range.
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return New(ErrCodeInvalidInput, "coordinate must be finite")
	}
	if lat < -85.05112878 || lat > 85.05112878 {
		return New(ErrCodeInvalidInput, "latitude %.6f out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return New(ErrCodeInvalidInput, "longitude %.6f out of range", lng)
	}
	return nil
}

// ValidateTolerance checks a snap tolerance in meters.
func ValidateTolerance(meters float64) error {
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters <= 0 {
		return New(ErrCodeInvalidInput, "tolerance must be a positive number of meters")
	}
	return nil
}

// ValidatePath validates a local file path used as a graph or override source.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !IsURL(rawURL) {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// IsURL reports whether location names an http(s) resource rather than a file.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

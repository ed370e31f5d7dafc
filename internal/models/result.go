package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LicenseEntry is one license row found by a state board search.
type LicenseEntry struct {
	LicenseNumber  string `json:"license_number"`
	Status         string `json:"status"`
	Address        string `json:"address"`
	IssueDate      string `json:"issue_date"`
	ExpirationDate string `json:"expiration_date"`
}

// SearchResult is the parsed contents of one license-search result file as
// written by the scraper: the search identity, an optional screenshot
// reference, and zero or more license entries.
type SearchResult struct {
	PharmacyName    string         `json:"pharmacy_name"`
	State           string         `json:"state"`
	SearchTimestamp string         `json:"search_timestamp,omitempty"`
	Screenshot      string         `json:"screenshot,omitempty"`
	Licenses        []LicenseEntry `json:"licenses"`
}

// ParseSearchResult reads and decodes a result file.
func ParseSearchResult(path string) (*SearchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result file: %w", err)
	}
	var res SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse result file: %w", err)
	}
	if res.PharmacyName == "" || res.State == "" {
		return nil, fmt.Errorf("result file missing pharmacy_name or state")
	}
	return &res, nil
}

// Timestamp parses the search timestamp, returning nil when absent or
// unparseable.
func (r *SearchResult) Timestamp() *time.Time {
	if r.SearchTimestamp == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, r.SearchTimestamp); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ScreenshotPath resolves the companion image: the metadata field when
// present (relative to the result file's directory), else the filename
// convention <base>.png.
func (r *SearchResult) ScreenshotPath(jsonPath string) string {
	if r.Screenshot != "" {
		if filepath.IsAbs(r.Screenshot) {
			return r.Screenshot
		}
		return filepath.Join(filepath.Dir(jsonPath), r.Screenshot)
	}
	return strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".png"
}

// DedupKey derives the diagnostic identity for a work item. Results with a
// license number key on the first license; license-less results key on the
// source file name so they never collide with each other. This key is used
// for duplicate analysis and CSV traceability only; the authoritative
// conflict key at import time is the (dataset, state, name, license_number)
// filter tuple.
func (r *SearchResult) DedupKey(tag, jsonPath string) string {
	name := strings.ToLower(strings.TrimSpace(r.PharmacyName))
	state := strings.ToLower(strings.TrimSpace(r.State))
	for _, lic := range r.Licenses {
		if num := strings.TrimSpace(lic.LicenseNumber); num != "" {
			return fmt.Sprintf("%s|%s|%s|%s", tag, name, state, strings.ToLower(num))
		}
	}
	return fmt.Sprintf("%s|%s|%s|no_license|%s", tag, name, state, filepath.Base(jsonPath))
}

// SanitizeID maps s to the identifier-safe alphabet [a-z0-9_].
func SanitizeID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// WorkID derives the stable item identity from state, name, and source
// file name.
func (r *SearchResult) WorkID(jsonPath string) string {
	base := strings.TrimSuffix(filepath.Base(jsonPath), filepath.Ext(jsonPath))
	return SanitizeID(r.State + "_" + r.PharmacyName + "_" + base)
}

// dateSentinels are strings state boards emit in date columns that mean
// "no date", matched case-insensitively.
var dateSentinels = map[string]struct{}{
	"not on file": {},
	"n/a":         {},
	"na":          {},
	"---":         {},
	"none":        {},
	"unknown":     {},
	"null":        {},
	"":            {},
}

// NormalizeDate returns nil for sentinel "not a real date" values and the
// trimmed text otherwise.
func NormalizeDate(s string) *string {
	trimmed := strings.TrimSpace(s)
	if _, ok := dateSentinels[strings.ToLower(trimmed)]; ok {
		return nil
	}
	return &trimmed
}

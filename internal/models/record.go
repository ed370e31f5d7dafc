package models

import (
	"strings"
	"time"
)

// RecordKind tags a logical record as a found license or a no-result
// outcome.
type RecordKind string

const (
	RecordFound    RecordKind = "found"
	RecordNotFound RecordKind = "not_found"
)

// ImportRecord is one license-search outcome to persist remotely. A work
// item with N license entries yields N found records; one with none yields
// a single not-found record.
type ImportRecord struct {
	Kind RecordKind

	// Item is the originating work item, so persistence failures can be
	// reported against it. Not part of the wire shape.
	Item *WorkItem

	DatasetID       int64
	SearchName      string
	SearchState     string
	SearchTimestamp *time.Time

	LicenseNumber  *string
	LicenseStatus  *string
	Address        *string
	IssueDate      *string
	ExpirationDate *string

	SourceFile     string
	ScreenshotHash *string
}

// RecordFieldNames is the canonical column set sent to the remote store.
// Every bulk row carries all of these so the batch has a uniform shape;
// absent values are explicit nulls.
var RecordFieldNames = []string{
	"search_name",
	"search_state",
	"search_timestamp",
	"result_status",
	"license_number",
	"license_status",
	"address",
	"issue_date",
	"expiration_date",
	"source_file",
	"screenshot_hash",
}

// ResultStatus is the persisted status column value for the record kind.
func (r *ImportRecord) ResultStatus() string {
	if r.Kind == RecordNotFound {
		return "no_results"
	}
	return "found"
}

// Fields converts the typed record to its wire representation: one value
// per entry of RecordFieldNames, nil for absent optionals.
func (r *ImportRecord) Fields() map[string]any {
	f := map[string]any{
		"search_name":      r.SearchName,
		"search_state":     r.SearchState,
		"search_timestamp": nil,
		"result_status":    r.ResultStatus(),
		"license_number":   nullableString(r.LicenseNumber),
		"license_status":   nullableString(r.LicenseStatus),
		"address":          nullableString(r.Address),
		"issue_date":       nullableString(r.IssueDate),
		"expiration_date":  nullableString(r.ExpirationDate),
		"source_file":      r.SourceFile,
		"screenshot_hash":  nullableString(r.ScreenshotHash),
	}
	if r.SearchTimestamp != nil {
		f["search_timestamp"] = r.SearchTimestamp.Format(time.RFC3339)
	}
	return f
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// DeriveRecords converts a parsed search result into its logical records.
// Date columns are sentinel-normalized; license numbers that are blank
// after trimming persist as null.
func DeriveRecords(res *SearchResult, item *WorkItem, datasetID int64) []*ImportRecord {
	base := ImportRecord{
		Item:            item,
		DatasetID:       datasetID,
		SearchName:      strings.TrimSpace(res.PharmacyName),
		SearchState:     strings.TrimSpace(res.State),
		SearchTimestamp: item.SearchTimestamp,
		SourceFile:      item.JSONPath,
		ScreenshotHash:  item.Fingerprint,
	}

	if len(res.Licenses) == 0 {
		rec := base
		rec.Kind = RecordNotFound
		return []*ImportRecord{&rec}
	}

	records := make([]*ImportRecord, 0, len(res.Licenses))
	for _, lic := range res.Licenses {
		rec := base
		rec.Kind = RecordFound
		if num := strings.TrimSpace(lic.LicenseNumber); num != "" {
			rec.LicenseNumber = &num
		}
		if status := strings.TrimSpace(lic.Status); status != "" {
			rec.LicenseStatus = &status
		}
		if addr := strings.TrimSpace(lic.Address); addr != "" {
			rec.Address = &addr
		}
		rec.IssueDate = NormalizeDate(lic.IssueDate)
		rec.ExpirationDate = NormalizeDate(lic.ExpirationDate)
		records = append(records, &rec)
	}
	return records
}

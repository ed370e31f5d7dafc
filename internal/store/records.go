package store

import (
	"context"
	"fmt"
)

// Record is a persisted logical record as returned by the remote store.
type Record struct {
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields"`
}

// RecordQuery selects records by equality on named columns. Columns listed
// in WhereNull must be null on the matched record; a null match is explicit,
// never a wildcard.
type RecordQuery struct {
	DatasetID int64          `json:"dataset_id"`
	Where     map[string]any `json:"where,omitempty"`
	WhereNull []string       `json:"where_null,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

type bulkInsertRequest struct {
	DatasetID int64    `json:"dataset_id"`
	Fields    []string `json:"fields"`
	Rows      [][]any  `json:"rows"`
}

type insertRequest struct {
	DatasetID int64          `json:"dataset_id"`
	Fields    map[string]any `json:"fields"`
}

type updateRequest struct {
	Fields map[string]any `json:"fields"`
}

type queryResponse struct {
	Records []Record `json:"records"`
}

// BulkInsertRecords inserts rows as one all-or-nothing operation. Every row
// must carry one value per entry of fields, in order. Returns ErrConflict
// (wrapped) when any row collides with a uniqueness constraint; in that
// case nothing was persisted.
func (c *Client) BulkInsertRecords(ctx context.Context, datasetID int64, fields []string, rows [][]any) error {
	req := bulkInsertRequest{DatasetID: datasetID, Fields: fields, Rows: rows}
	if err := c.do(ctx, "POST", "/api/v1/records/bulk", req, nil); err != nil {
		return fmt.Errorf("bulk insert %d records: %w", len(rows), err)
	}
	return nil
}

// InsertRecord inserts a single record.
func (c *Client) InsertRecord(ctx context.Context, datasetID int64, fields map[string]any) error {
	if err := c.do(ctx, "POST", "/api/v1/records", insertRequest{DatasetID: datasetID, Fields: fields}, nil); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// UpdateRecord overwrites fields on an existing record.
func (c *Client) UpdateRecord(ctx context.Context, recordID int64, fields map[string]any) error {
	path := fmt.Sprintf("/api/v1/records/%d", recordID)
	if err := c.do(ctx, "PATCH", path, updateRequest{Fields: fields}, nil); err != nil {
		return fmt.Errorf("update record %d: %w", recordID, err)
	}
	return nil
}

// QueryRecords returns records matching the query.
func (c *Client) QueryRecords(ctx context.Context, q RecordQuery) ([]Record, error) {
	var resp queryResponse
	if err := c.do(ctx, "POST", "/api/v1/records/query", q, &resp); err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return resp.Records, nil
}

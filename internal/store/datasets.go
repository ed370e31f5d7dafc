package store

import (
	"context"
	"fmt"
)

// DatasetKindStates is the kind tag for state license-search datasets.
const DatasetKindStates = "states"

type ensureDatasetRequest struct {
	Kind string `json:"kind"`
	Tag  string `json:"tag"`
}

type ensureDatasetResponse struct {
	ID int64 `json:"id"`
}

// EnsureDataset returns the id of the dataset with the given kind and tag,
// creating it if none exists. The remote store owns the dataset; the
// pipeline only holds its numeric identity.
func (c *Client) EnsureDataset(ctx context.Context, kind, tag string) (int64, error) {
	var resp ensureDatasetResponse
	err := c.do(ctx, "POST", "/api/v1/datasets/ensure", ensureDatasetRequest{Kind: kind, Tag: tag}, &resp)
	if err != nil {
		return 0, fmt.Errorf("ensure dataset %q: %w", tag, err)
	}
	return resp.ID, nil
}

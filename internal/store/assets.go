package store

import (
	"context"
	"errors"
	"fmt"
)

// AssetInput registers a stored binary with the remote store, keyed by its
// content fingerprint.
type AssetInput struct {
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type assetQueryRequest struct {
	FingerprintIn []string `json:"fingerprint_in"`
}

type assetQueryResponse struct {
	Fingerprints []string `json:"fingerprints"`
}

// ExistingFingerprints returns the subset of fingerprints that already have
// a registered asset.
func (c *Client) ExistingFingerprints(ctx context.Context, fingerprints []string) ([]string, error) {
	if len(fingerprints) == 0 {
		return nil, nil
	}
	var resp assetQueryResponse
	if err := c.do(ctx, "POST", "/api/v1/assets/query", assetQueryRequest{FingerprintIn: fingerprints}, &resp); err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	return resp.Fingerprints, nil
}

// CreateAsset registers an asset record. A conflict means the fingerprint
// is already registered, which the caller treats as success.
func (c *Client) CreateAsset(ctx context.Context, asset AssetInput) error {
	err := c.do(ctx, "POST", "/api/v1/assets", asset, nil)
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("create asset %s: %w", asset.Fingerprint, err)
	}
	return nil
}

package domain

import "time"

// MediaType classifies evidence attached to an installation.
type MediaType string

const (
	MediaPhoto     MediaType = "photo"
	MediaSignature MediaType = "signature"
)

func (t MediaType) Valid() bool {
	return t == MediaPhoto || t == MediaSignature
}

// MediaAsset references an uploaded file. Only the URL and metadata are
// stored; the content itself lives elsewhere.
type MediaAsset struct {
	ID             string         `json:"id"`
	InstallationID string         `json:"installation_id"`
	URL            string         `json:"url"`
	Type           MediaType      `json:"type"`
	Tags           map[string]any `json:"tags"`
	SHA256         *string        `json:"sha256"`
	CreatedBy      *string        `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

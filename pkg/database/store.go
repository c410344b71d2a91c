// Package database records claimed items in a storage backend.
package database

import (
	"context"
	"time"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
)

// Store persists the metadata of a claimed item together with its upload links.
type Store interface {
	Service() domain.StoreService
	// Accepts names the upload destination whose results this store understands.
	Accepts() domain.UploadService
	Store(ctx context.Context, item *domain.ClaimedItem, upload *domain.UploadResult) error
}

// Record is the document written for each claimed item.
type Record struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Author      string                `json:"author,omitempty"`
	Description string                `json:"description,omitempty"`
	ImageURL    string                `json:"image_url,omitempty"`
	URL         string                `json:"url"`
	Source      domain.Scope          `json:"source"`
	ClaimedAt   time.Time             `json:"claimed_at"`
	Upload      domain.UploadService  `json:"upload,omitempty"`
	Files       []domain.UploadedFile `json:"files,omitempty"`
}

// NewRecord flattens a claimed item and an optional upload result.
func NewRecord(item *domain.ClaimedItem, upload *domain.UploadResult) Record {
	r := Record{
		ID:          item.ID,
		Title:       item.Title,
		Author:      item.Author,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		URL:         item.URL,
		Source:      item.Source,
		ClaimedAt:   item.ClaimedAt,
	}
	if upload != nil && upload.Success {
		r.Upload = upload.Service
		r.Files = upload.Files
	}
	return r
}

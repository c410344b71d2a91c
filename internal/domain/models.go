package domain

import (
	"time"
)

// Domain contains core models and interfaces.

// Scope names a failure-isolation scope of a run.
type Scope string

const (
	ScopeDaily      Scope = "daily"
	ScopeNewsletter Scope = "newsletter"
	ScopeGlobal     Scope = "global"
)

// Path keys used for extras next to the format keys.
const (
	PathCode  = "code"
	PathCover = "cover"
)

// Item holds the metadata scraped for a promotional item.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	URL         string `json:"url"`
	ClaimURL    string `json:"claim_url,omitempty"`
	Source      Scope  `json:"source"`
}

// ClaimedItem is the result of a successful claim. Paths is filled by the
// download steps and keyed by format name (or PathCode/PathCover for extras).
type ClaimedItem struct {
	Item
	Paths     map[string]string `json:"paths"`
	ClaimedAt time.Time         `json:"claimed_at"`
}

// NewClaimedItem stamps the claim time and prepares an empty path mapping.
func NewClaimedItem(item Item, now time.Time) *ClaimedItem {
	return &ClaimedItem{
		Item:      item,
		Paths:     make(map[string]string),
		ClaimedAt: now.UTC(),
	}
}

// SetPath records a downloaded file for the given key.
func (c *ClaimedItem) SetPath(key, path string) {
	if c.Paths == nil {
		c.Paths = make(map[string]string)
	}
	c.Paths[key] = path
}

// ClaimResult is either a claimed item or "nothing available".
type ClaimResult struct {
	Item   *ClaimedItem
	Reason string
}

// Found wraps a claimed item.
func Found(item *ClaimedItem) ClaimResult {
	return ClaimResult{Item: item}
}

// NotAvailable reports that no item can be claimed right now.
func NotAvailable(reason string) ClaimResult {
	return ClaimResult{Reason: reason}
}

// Available reports whether the claim produced an item.
func (r ClaimResult) Available() bool {
	return r.Item != nil
}

// UploadedFile describes one file stored by an upload destination.
type UploadedFile struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ID          string `json:"id,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	ViewURL     string `json:"view_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// UploadResult is returned by upload drivers.
type UploadResult struct {
	Service UploadService  `json:"service"`
	Success bool           `json:"success"`
	Files   []UploadedFile `json:"files"`
}

// From reports whether the result is a successful upload to svc.
func (r *UploadResult) From(svc UploadService) bool {
	return r != nil && r.Success && r.Service == svc
}

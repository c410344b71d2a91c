package domain

import (
	"fmt"
	"strings"
)

// Format is a downloadable e-book format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
	FormatMOBI Format = "mobi"
)

// AllFormats returns the fixed set of supported formats.
func AllFormats() []Format {
	return []Format{FormatPDF, FormatEPUB, FormatMOBI}
}

// UploadService names an upload destination.
type UploadService string

const (
	UploadNone    UploadService = ""
	UploadDrive   UploadService = "drive"
	UploadDropbox UploadService = "dropbox"
	UploadSCP     UploadService = "scp"
)

// UploadServices returns the supported upload destinations.
func UploadServices() []UploadService {
	return []UploadService{UploadDrive, UploadDropbox, UploadSCP}
}

// NotifyService names a notification channel.
type NotifyService string

const (
	NotifyNone  NotifyService = ""
	NotifyGmail NotifyService = "gmail"
	NotifyIFTTT NotifyService = "ifttt"
	NotifyJoin  NotifyService = "join"
)

// NotifyServices returns the supported notification channels.
func NotifyServices() []NotifyService {
	return []NotifyService{NotifyGmail, NotifyIFTTT, NotifyJoin}
}

// StoreService names a storage backend.
type StoreService string

const (
	StoreNone     StoreService = ""
	StoreFirebase StoreService = "firebase"
)

// StoreServices returns the supported storage backends.
func StoreServices() []StoreService {
	return []StoreService{StoreFirebase}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	return parseClosed("format", s, AllFormats())
}

// ParseUploadService validates an upload destination name. Empty means none.
func ParseUploadService(s string) (UploadService, error) {
	if strings.TrimSpace(s) == "" {
		return UploadNone, nil
	}
	return parseClosed("upload", s, UploadServices())
}

// ParseNotifyService validates a notification channel name. Empty means none.
func ParseNotifyService(s string) (NotifyService, error) {
	if strings.TrimSpace(s) == "" {
		return NotifyNone, nil
	}
	return parseClosed("notify", s, NotifyServices())
}

// ParseStoreService validates a storage backend name. Empty means none.
func ParseStoreService(s string) (StoreService, error) {
	if strings.TrimSpace(s) == "" {
		return StoreNone, nil
	}
	return parseClosed("store", s, StoreServices())
}

func parseClosed[T ~string](category, s string, allowed []T) (T, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if string(a) == name {
			return a, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q (expected one of %s)", ErrUnsupportedService, category, s, joinNames(allowed))
}

func joinNames[T ~string](names []T) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// RunConfiguration is the set of options selected for a single invocation.
type RunConfiguration struct {
	Format    Format
	AllFormat bool
	Extras    bool
	Archive   bool
	Upload    UploadService
	Notify    NotifyService
	Store     StoreService
	ClaimOnly bool
	Dev       bool
}

// Formats resolves the requested formats.
func (c RunConfiguration) Formats() []Format {
	if c.AllFormat {
		return AllFormats()
	}
	if c.Format == "" {
		return []Format{FormatPDF}
	}
	return []Format{c.Format}
}

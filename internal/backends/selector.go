// Package backends maps requested service names to their drivers.
package backends

import (
	"fmt"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/pkg/database"
	"github.com/samvad-hq/freebook-harvester/pkg/notify"
	"github.com/samvad-hq/freebook-harvester/pkg/upload"
)

type registry[K ~string, V any] struct {
	category string
	drivers  map[K]V
}

func newRegistry[K ~string, V any](category string) registry[K, V] {
	return registry[K, V]{category: category, drivers: make(map[K]V)}
}

func (r registry[K, V]) get(name K) (V, error) {
	d, ok := r.drivers[name]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %s %q", domain.ErrUnsupportedService, r.category, name)
	}
	return d, nil
}

// Selector is a lookup table of the drivers prepared for a run.
type Selector struct {
	uploaders registry[domain.UploadService, upload.Uploader]
	notifiers registry[domain.NotifyService, notify.Notifier]
	stores    registry[domain.StoreService, database.Store]
}

// NewSelector returns an empty selector.
func NewSelector() *Selector {
	return &Selector{
		uploaders: newRegistry[domain.UploadService, upload.Uploader]("upload"),
		notifiers: newRegistry[domain.NotifyService, notify.Notifier]("notify"),
		stores:    newRegistry[domain.StoreService, database.Store]("store"),
	}
}

// WithUploader registers u under its own service name.
func (s *Selector) WithUploader(u upload.Uploader) *Selector {
	s.uploaders.drivers[u.Service()] = u
	return s
}

// WithNotifier registers n under its own service name.
func (s *Selector) WithNotifier(n notify.Notifier) *Selector {
	s.notifiers.drivers[n.Service()] = n
	return s
}

// WithStore registers d under its own service name.
func (s *Selector) WithStore(d database.Store) *Selector {
	s.stores.drivers[d.Service()] = d
	return s
}

// Uploader returns the driver for svc or ErrUnsupportedService.
func (s *Selector) Uploader(svc domain.UploadService) (upload.Uploader, error) {
	return s.uploaders.get(svc)
}

// Notifier returns the driver for svc or ErrUnsupportedService.
func (s *Selector) Notifier(svc domain.NotifyService) (notify.Notifier, error) {
	return s.notifiers.get(svc)
}

// Store returns the driver for svc or ErrUnsupportedService.
func (s *Selector) Store(svc domain.StoreService) (database.Store, error) {
	return s.stores.get(svc)
}

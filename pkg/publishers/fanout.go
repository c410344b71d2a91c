package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Fanout delivers each claim event to every configured publisher.
type Fanout struct {
	publishers []Publisher
}

// NewFanout drops nil publishers.
func NewFanout(pubs []Publisher) *Fanout {
	cp := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			cp = append(cp, p)
		}
	}
	return &Fanout{publishers: cp}
}

// Publish returns the number of publishers that accepted the event and the joined failures.
func (f *Fanout) Publish(ctx context.Context, evt ClaimEvent) (int, error) {
	if f == nil {
		return 0, nil
	}
	var errs []error
	delivered := 0
	for _, p := range f.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of active publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Close releases publishers that hold connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, p := range f.publishers {
		sp, ok := p.(*senderPublisher)
		if !ok {
			continue
		}
		if c, ok := sp.sender.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

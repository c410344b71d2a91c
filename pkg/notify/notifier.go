// Package notify tells the operator about claimed items and failed runs.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
)

// Notifier delivers claim and error notifications on one channel.
type Notifier interface {
	Service() domain.NotifyService
	// Notify reports a claimed item. upload is nil when nothing was uploaded.
	Notify(ctx context.Context, item *domain.ClaimedItem, upload *domain.UploadResult) error
	NotifyError(ctx context.Context, err error, scope domain.Scope) error
}

const subjectPrefix = "[freebook]"

// message is the channel-neutral rendering of a notification.
type message struct {
	Title    string
	Text     string
	ImageURL string
	URL      string
	Links    []link
}

type link struct {
	Label string
	URL   string
}

func claimMessage(item *domain.ClaimedItem, upload *domain.UploadResult) message {
	m := message{
		Title:    fmt.Sprintf("%s %s", subjectPrefix, item.Title),
		Text:     claimText(item),
		ImageURL: item.ImageURL,
		URL:      item.URL,
	}
	if upload != nil && upload.Success {
		for _, f := range upload.Files {
			target := firstNonEmpty(f.DownloadURL, f.ViewURL)
			if target == "" {
				continue
			}
			m.Links = append(m.Links, link{Label: f.Key, URL: target})
		}
		if len(m.Links) > 0 {
			m.URL = m.Links[0].URL
		}
	}
	return m
}

func claimText(item *domain.ClaimedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claimed from %s", item.Source)
	if item.Author != "" {
		fmt.Fprintf(&b, ", by %s", item.Author)
	}
	if item.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(item.Description)
	}
	return b.String()
}

func errorMessage(err error, scope domain.Scope) message {
	return message{
		Title: fmt.Sprintf("%s error (%s)", subjectPrefix, scope),
		Text:  errText(err),
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

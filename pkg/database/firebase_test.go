package database

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
)

func claimed() *domain.ClaimedItem {
	return domain.NewClaimedItem(domain.Item{
		ID:     "9781",
		Title:  "Learning Go",
		URL:    "https://example.com/free-learning",
		Source: domain.ScopeNewsletter,
	}, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
}

func TestFirebaseStorePushesRecord(t *testing.T) {
	var got Record
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		path = r.URL.Path
		auth = r.URL.Query().Get("auth")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode record: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "-Nabc"}`))
	}))
	defer srv.Close()

	store, err := NewFirebase(FirebaseConfig{DatabaseURL: srv.URL + "/", Secret: "s3cret", Path: "/books/"}, nil)
	if err != nil {
		t.Fatalf("NewFirebase: %v", err)
	}
	if store.Accepts() != domain.UploadDrive {
		t.Fatalf("firebase must accept drive results")
	}

	upload := &domain.UploadResult{
		Service: domain.UploadDrive,
		Success: true,
		Files:   []domain.UploadedFile{{Key: "pdf", DownloadURL: "https://drive/dl/1"}},
	}
	if err := store.Store(context.Background(), claimed(), upload); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if path != "/books.json" || auth != "s3cret" {
		t.Fatalf("unexpected request path=%q auth=%q", path, auth)
	}
	if got.Title != "Learning Go" || got.Source != domain.ScopeNewsletter || got.Upload != domain.UploadDrive {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(got.Files) != 1 || got.Files[0].DownloadURL != "https://drive/dl/1" {
		t.Fatalf("unexpected files %+v", got.Files)
	}
}

func TestFirebaseStoreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "Permission denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	store, err := NewFirebase(FirebaseConfig{DatabaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewFirebase: %v", err)
	}
	if err := store.Store(context.Background(), claimed(), nil); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestNewRecordIgnoresFailedUpload(t *testing.T) {
	r := NewRecord(claimed(), &domain.UploadResult{Service: domain.UploadDrive, Files: []domain.UploadedFile{{Key: "pdf"}}})
	if r.Upload != "" || len(r.Files) != 0 {
		t.Fatalf("failed uploads must not be recorded: %+v", r)
	}
}

func TestNewFirebaseRequiresURL(t *testing.T) {
	if _, err := NewFirebase(FirebaseConfig{}, nil); err == nil {
		t.Fatalf("expected error without database url")
	}
}

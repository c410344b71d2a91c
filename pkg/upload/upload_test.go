package upload

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/drive/v3"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
)

func writeFiles(t *testing.T, files map[string]string) map[string]string {
	t.Helper()
	dir := t.TempDir()
	paths := make(map[string]string, len(files))
	for key, name := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("content-"+key), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		paths[key] = p
	}
	return paths
}

// fakeDriveFiles records created files and can inject errors.
type fakeDriveFiles struct {
	created []*drive.File
	bodies  []string
	shared  []string
	err     error
}

func (f *fakeDriveFiles) Create(_ context.Context, meta *drive.File, media io.Reader) (*drive.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := io.ReadAll(media)
	f.created = append(f.created, meta)
	f.bodies = append(f.bodies, string(raw))
	id := "id-" + meta.Name
	return &drive.File{
		Id:             id,
		Name:           meta.Name,
		MimeType:       meta.MimeType,
		WebViewLink:    "https://drive.example.com/view/" + id,
		WebContentLink: "https://drive.example.com/dl/" + id,
	}, nil
}

func (f *fakeDriveFiles) ShareWithAnyone(_ context.Context, id string) error {
	f.shared = append(f.shared, id)
	return nil
}

func TestDriveUploaderUploadsAndShares(t *testing.T) {
	paths := writeFiles(t, map[string]string{"pdf": "go.pdf", "epub": "go.epub"})
	files := &fakeDriveFiles{}
	up := &driveUploader{
		cfg:   DriveConfig{FolderID: "folder-1", Public: true},
		files: files,
		log:   logger.NopLogger{},
	}

	res, err := up.Upload(context.Background(), paths)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.From(domain.UploadDrive) || len(res.Files) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	// keys are uploaded in sorted order
	if res.Files[0].Key != "epub" || res.Files[1].Key != "pdf" {
		t.Fatalf("unexpected upload order %+v", res.Files)
	}
	if res.Files[1].DownloadURL != "https://drive.example.com/dl/id-go.pdf" {
		t.Fatalf("unexpected download url %q", res.Files[1].DownloadURL)
	}
	if files.created[0].Parents[0] != "folder-1" || files.bodies[1] != "content-pdf" {
		t.Fatalf("unexpected drive calls %+v %v", files.created[0], files.bodies)
	}
	if files.created[1].MimeType != "application/pdf" {
		t.Fatalf("unexpected mime type %q", files.created[1].MimeType)
	}
	if len(files.shared) != 2 {
		t.Fatalf("expected both files shared, got %v", files.shared)
	}
}

func TestDriveUploaderFailure(t *testing.T) {
	paths := writeFiles(t, map[string]string{"pdf": "go.pdf"})
	up := &driveUploader{files: &fakeDriveFiles{err: errors.New("quota exceeded")}, log: logger.NopLogger{}}

	res, err := up.Upload(context.Background(), paths)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
	if res == nil || res.Success {
		t.Fatalf("failed upload must not report success: %+v", res)
	}
}

func TestDropboxUploader(t *testing.T) {
	var args []dropboxArg
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != dropboxUploadPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected auth header %q", got)
		}
		var arg dropboxArg
		if err := json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg); err != nil {
			t.Errorf("decode arg: %v", err)
		}
		args = append(args, arg)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dropboxMetadata{ID: "id:1", Name: filepath.Base(arg.Path), PathDisplay: arg.Path})
	}))
	defer srv.Close()

	up, err := NewDropbox(DropboxConfig{BaseURL: srv.URL, AccessToken: "token-1", Folder: "/books"}, nil)
	if err != nil {
		t.Fatalf("NewDropbox: %v", err)
	}
	res, err := up.Upload(context.Background(), writeFiles(t, map[string]string{"pdf": "go.pdf"}))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.From(domain.UploadDropbox) || res.From(domain.UploadDrive) {
		t.Fatalf("unexpected result service %+v", res)
	}
	if len(args) != 1 || args[0].Path != "/books/go.pdf" || args[0].Mode != "overwrite" {
		t.Fatalf("unexpected dropbox args %+v", args)
	}
	if res.Files[0].ViewURL != "/books/go.pdf" {
		t.Fatalf("unexpected file %+v", res.Files[0])
	}
}

func TestDropboxUploaderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error_summary": "path/insufficient_space/"}`, http.StatusConflict)
	}))
	defer srv.Close()

	up, err := NewDropbox(DropboxConfig{BaseURL: srv.URL, AccessToken: "t"}, nil)
	if err != nil {
		t.Fatalf("NewDropbox: %v", err)
	}
	if _, err := up.Upload(context.Background(), writeFiles(t, map[string]string{"pdf": "go.pdf"})); err == nil {
		t.Fatalf("expected error on 409")
	}
}

func TestSendFileSpeaksSCPProtocol(t *testing.T) {
	var out bytes.Buffer
	acks := bufio.NewReader(bytes.NewReader([]byte{0, 0, 0}))

	if err := sendFile(&out, acks, "go.pdf", 5, 0o644, strings.NewReader("hello")); err != nil {
		t.Fatalf("sendFile: %v", err)
	}
	if got := out.String(); got != "C0644 5 go.pdf\nhello\x00" {
		t.Fatalf("unexpected wire data %q", got)
	}
}

func TestSendFileReportsRemoteError(t *testing.T) {
	acks := bufio.NewReader(bytes.NewReader([]byte("\x00\x01scp: /books: Permission denied\n")))
	err := sendFile(io.Discard, acks, "go.pdf", 5, 0o644, strings.NewReader("hello"))
	if err == nil || !strings.Contains(err.Error(), "Permission denied") {
		t.Fatalf("expected remote error, got %v", err)
	}
}

type fakeCopier struct {
	copied map[string]string
	closed bool
}

func (f *fakeCopier) Copy(dir, name string, _ int64, _ os.FileMode, r io.Reader) error {
	raw, _ := io.ReadAll(r)
	f.copied[dir+"/"+name] = string(raw)
	return nil
}

func (f *fakeCopier) Close() error {
	f.closed = true
	return nil
}

func TestSCPUploaderCopiesAllFiles(t *testing.T) {
	conn := &fakeCopier{copied: map[string]string{}}
	up := &scpUploader{
		cfg:  SCPConfig{Host: "nas.local", Port: 22, User: "me", RemoteDir: "/srv/books"},
		dial: func(context.Context) (copier, error) { return conn, nil },
		log:  logger.NopLogger{},
	}

	res, err := up.Upload(context.Background(), writeFiles(t, map[string]string{"pdf": "go.pdf", "code": "go.code.zip"}))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.From(domain.UploadSCP) || len(res.Files) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if conn.copied["/srv/books/go.pdf"] != "content-pdf" || !conn.closed {
		t.Fatalf("unexpected copies %v closed=%v", conn.copied, conn.closed)
	}
	if res.Files[1].ViewURL != "scp://me@nas.local:22/srv/books/go.pdf" {
		t.Fatalf("unexpected view url %q", res.Files[1].ViewURL)
	}
}

func TestNewSCPRequiresHostKeyPolicy(t *testing.T) {
	if _, err := NewSCP(SCPConfig{Host: "h", User: "u", Password: "p"}, nil); err == nil {
		t.Fatalf("expected error without host key policy")
	}
	if _, err := NewSCP(SCPConfig{Host: "h", User: "u", Password: "p", InsecureSkipHostKey: true}, nil); err != nil {
		t.Fatalf("NewSCP: %v", err)
	}
}

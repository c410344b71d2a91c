package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
)

func TestRunConfigurationParsesFlags(t *testing.T) {
	opts := options{format: "epub", upload: "drive", notify: "gmail", store: "firebase", extras: true}
	run, err := opts.runConfiguration()
	if err != nil {
		t.Fatalf("runConfiguration: %v", err)
	}
	if run.Format != domain.FormatEPUB || run.Upload != domain.UploadDrive || run.Notify != domain.NotifyGmail || run.Store != domain.StoreFirebase || !run.Extras {
		t.Fatalf("unexpected run configuration %+v", run)
	}
}

func TestRunConfigurationRejectsUnknownServices(t *testing.T) {
	cases := []options{
		{format: "docx"},
		{format: "pdf", upload: "ftp"},
		{format: "pdf", notify: "slack"},
		{format: "pdf", store: "mongo"},
	}
	for _, opts := range cases {
		if _, err := opts.runConfiguration(); !errors.Is(err, domain.ErrUnsupportedService) {
			t.Fatalf("expected ErrUnsupportedService for %+v, got %v", opts, err)
		}
	}
}

func runCmd(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func TestCommandRequiresConfig(t *testing.T) {
	if err := runCmd("--type", "pdf"); err == nil {
		t.Fatalf("expected missing --config error")
	}
}

func TestCommandTypeAndAllAreExclusive(t *testing.T) {
	if err := runCmd("-c", "config/prod.yaml", "--type", "epub", "--all"); err == nil {
		t.Fatalf("expected mutually exclusive flag error")
	}
}

func TestCommandRejectsUnknownUploadBeforeRunning(t *testing.T) {
	err := runCmd("-c", "does-not-exist.yaml", "-u", "ftp")
	if !errors.Is(err, domain.ErrUnsupportedService) {
		t.Fatalf("expected ErrUnsupportedService, got %v", err)
	}
}

func TestBootstrapFailureHonoursFailOnError(t *testing.T) {
	if err := runCmd("-c", "does-not-exist.yaml"); err != nil {
		t.Fatalf("default exit must be clean, got %v", err)
	}
	if err := runCmd("-c", "does-not-exist.yaml", "--fail-on-error"); !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}
}

func TestProviderInitFailureIsNotifiedAsGlobal(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte("Congratulations!"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`site:
  email: ""
  password: ""
checkpoint:
  path: %s
notify:
  ifttt:
    base_url: %s
    key: k1
    event: freebook
`, filepath.Join(dir, "lastNewsletterUrl"), srv.URL)
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := runCmd("-c", cfgPath, "-n", "ifttt", "--fail-on-error"); !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/trigger/freebook_error/with/key/k1" {
		t.Fatalf("expected one global error notification, got %v", paths)
	}
}

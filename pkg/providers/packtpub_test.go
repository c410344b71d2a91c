package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
)

const loginForm = `
<form id="packt-user-login-form" action="/login" method="post">
  <input type="hidden" name="form_build_id" value="form-abc123">
  <input type="text" name="email">
</form>`

const dailyOffer = `
<div class="dotd-main-book-image"><img src="//static.example.com/cover/go-in-practice.png"></div>
<div class="dotd-main-book-summary">
  <div class="dotd-title"><h2>  Go in
     Practice </h2></div>
  <div class="dotd-author">Jane Gopher</div>
  <div class="dotd-description"><p>Learn <strong>idiomatic</strong> Go.</p></div>
</div>
<a class="twelve-days-claim" href="/freelearning-claim/12345/21478">Claim Your Free eBook</a>`

// fakeSite emulates the promotional site: login sets a session cookie that unlocks the offer.
type fakeSite struct {
	t         *testing.T
	mu        sync.Mutex
	offer     string
	loginFail bool
	logins    int
	claims    []string
	codeFound bool
	expired   bool
	rejectOne bool
	form      map[string]string
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	page := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		expired := f.expired
		f.mu.Unlock()
		if _, err := r.Cookie("SESS"); err != nil || expired {
			fmt.Fprintf(w, "<html><body>%s</body></html>", loginForm)
			return
		}
		fmt.Fprintf(w, "<html><head><title>Free Learning</title></head><body>%s</body></html>", f.offer)
	}
	mux.HandleFunc("/packt/offers/free-learning", page)
	mux.HandleFunc("/newsletter/42", page)
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.logins++
		f.expired = false
		if err := r.ParseForm(); err != nil {
			f.t.Errorf("parse login form: %v", err)
		}
		f.form = map[string]string{}
		for k := range r.PostForm {
			f.form[k] = r.PostForm.Get(k)
		}
		if f.loginFail {
			fmt.Fprint(w, `<div class="messages error">Sorry, unrecognized email or password.</div>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SESS", Value: "ok", Path: "/"})
		fmt.Fprint(w, "<html>welcome</html>")
	})
	mux.HandleFunc("/freelearning-claim/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		if f.expired || f.rejectOne {
			f.rejectOne = false
			f.expired = true
			f.mu.Unlock()
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.claims = append(f.claims, r.URL.Path)
		f.mu.Unlock()
		fmt.Fprint(w, "<html>claimed</html>")
	})
	mux.HandleFunc("/ebook_download/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "content of %s", r.URL.Path)
	})
	mux.HandleFunc("/code_download/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		found := f.codeFound
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "PK")
	})
	mux.HandleFunc("/cover/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "PNG")
	})
	return mux
}

func (f *fakeSite) setCodeFound(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeFound = v
}

func (f *fakeSite) stats() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, append([]string(nil), f.claims...)
}

func newTestProvider(t *testing.T, site *fakeSite) (*packtpub, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(site.handler())
	t.Cleanup(srv.Close)

	p, err := NewPacktpub(Site{
		BaseURL:      srv.URL,
		LoginPath:    "/",
		DailyPath:    "/packt/offers/free-learning",
		DownloadPath: "/ebook_download/%s/%s",
		CodePath:     "/code_download/%s",
		Email:        "me@example.com",
		Password:     "secret",
	}, httpclient.NewRestyClient(2*time.Second), nil)
	if err != nil {
		t.Fatalf("NewPacktpub: %v", err)
	}
	prov := p.(*packtpub)
	prov.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return prov, srv
}

func TestClaimDailyLogsInAndClaims(t *testing.T) {
	site := &fakeSite{t: t, offer: dailyOffer}
	p, srv := newTestProvider(t, site)

	res, err := p.ClaimDaily(context.Background())
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if !res.Available() {
		t.Fatalf("expected an item, got reason %q", res.Reason)
	}
	item := res.Item
	if item.ID != "12345" || item.Title != "Go in Practice" || item.Author != "Jane Gopher" {
		t.Fatalf("unexpected item %+v", item.Item)
	}
	if !strings.Contains(item.Description, "**idiomatic**") {
		t.Fatalf("description not converted to markdown: %q", item.Description)
	}
	if item.ImageURL != "https://static.example.com/cover/go-in-practice.png" {
		t.Fatalf("unexpected image url %q", item.ImageURL)
	}
	if item.Source != domain.ScopeDaily || item.URL != srv.URL+"/packt/offers/free-learning" {
		t.Fatalf("unexpected source/url %s %s", item.Source, item.URL)
	}
	if !item.ClaimedAt.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected claim time %s", item.ClaimedAt)
	}
	logins, claims := site.stats()
	if logins != 1 || len(claims) != 1 || claims[0] != "/freelearning-claim/12345/21478" {
		t.Fatalf("unexpected site interactions logins=%d claims=%v", logins, claims)
	}
	site.mu.Lock()
	defer site.mu.Unlock()
	if site.form["form_build_id"] != "form-abc123" || site.form["email"] != "me@example.com" || site.form["form_id"] != loginFormID {
		t.Fatalf("login form not populated: %#v", site.form)
	}
}

func TestClaimNewsletterReusesSession(t *testing.T) {
	site := &fakeSite{t: t, offer: dailyOffer}
	p, srv := newTestProvider(t, site)
	ctx := context.Background()

	if _, err := p.ClaimDaily(ctx); err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	res, err := p.ClaimNewsletter(ctx, srv.URL+"/newsletter/42")
	if err != nil {
		t.Fatalf("ClaimNewsletter: %v", err)
	}
	if !res.Available() || res.Item.Source != domain.ScopeNewsletter {
		t.Fatalf("unexpected newsletter result %+v", res)
	}
	if logins, _ := site.stats(); logins != 1 {
		t.Fatalf("expected a single login, got %d", logins)
	}
}

func TestClaimLogsInAgainAfterSessionExpiry(t *testing.T) {
	site := &fakeSite{t: t, offer: dailyOffer}
	p, srv := newTestProvider(t, site)
	ctx := context.Background()

	if _, err := p.ClaimDaily(ctx); err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	site.mu.Lock()
	site.expired = true
	site.mu.Unlock()

	res, err := p.ClaimNewsletter(ctx, srv.URL+"/newsletter/42")
	if err != nil {
		t.Fatalf("ClaimNewsletter: %v", err)
	}
	if !res.Available() {
		t.Fatalf("expected an item after logging in again, got %+v", res)
	}
	if logins, claims := site.stats(); logins != 2 || len(claims) != 2 {
		t.Fatalf("expected a second login, got logins=%d claims=%v", logins, claims)
	}
}

func TestRejectedClaimForcesNewLogin(t *testing.T) {
	site := &fakeSite{t: t, offer: dailyOffer}
	p, _ := newTestProvider(t, site)
	ctx := context.Background()

	if _, err := p.ClaimDaily(ctx); err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	site.mu.Lock()
	site.rejectOne = true
	site.mu.Unlock()

	if _, err := p.ClaimDaily(ctx); err == nil {
		t.Fatalf("expected forbidden claim to fail")
	}
	if p.loggedIn {
		t.Fatalf("a rejected claim must drop the session")
	}
	if _, err := p.ClaimDaily(ctx); err != nil {
		t.Fatalf("ClaimDaily after relogin: %v", err)
	}
	if logins, _ := site.stats(); logins != 2 {
		t.Fatalf("expected a second login, got %d", logins)
	}
}

func TestClaimReportsNothingAvailable(t *testing.T) {
	site := &fakeSite{t: t, offer: `<div class="dotd-title"><h2>Sold out</h2></div>`}
	p, _ := newTestProvider(t, site)

	res, err := p.ClaimDaily(context.Background())
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if res.Available() || res.Reason == "" {
		t.Fatalf("expected not available with reason, got %+v", res)
	}
	if _, claims := site.stats(); len(claims) != 0 {
		t.Fatalf("no claim should be attempted, got %v", claims)
	}
}

func TestClaimFailsOnBadCredentials(t *testing.T) {
	site := &fakeSite{t: t, offer: dailyOffer, loginFail: true}
	p, _ := newTestProvider(t, site)

	_, err := p.ClaimDaily(context.Background())
	if err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestDownloadFormatsAndExtras(t *testing.T) {
	site := &fakeSite{t: t, offer: dailyOffer}
	p, srv := newTestProvider(t, site)
	ctx := context.Background()
	dir := t.TempDir()

	item := domain.NewClaimedItem(domain.Item{
		ID:       "12345",
		Title:    "Go in Practice",
		ImageURL: srv.URL + "/cover/go.png",
	}, time.Now())

	if err := p.Download(ctx, item, domain.FormatEPUB, dir); err != nil {
		t.Fatalf("Download: %v", err)
	}
	want := filepath.Join(dir, "go-in-practice.epub")
	if item.Paths["epub"] != want {
		t.Fatalf("epub path = %q, want %q", item.Paths["epub"], want)
	}
	raw, err := os.ReadFile(want)
	if err != nil || string(raw) != "content of /ebook_download/12345/epub" {
		t.Fatalf("unexpected epub content %q err %v", raw, err)
	}

	if err := p.DownloadExtras(ctx, item, dir); err != nil {
		t.Fatalf("DownloadExtras without code: %v", err)
	}
	if _, ok := item.Paths[domain.PathCode]; ok {
		t.Fatalf("code path should be absent when the archive does not exist")
	}
	if item.Paths[domain.PathCover] != filepath.Join(dir, "go-in-practice.png") {
		t.Fatalf("unexpected cover path %q", item.Paths[domain.PathCover])
	}

	site.setCodeFound(true)
	if err := p.DownloadExtras(ctx, item, dir); err != nil {
		t.Fatalf("DownloadExtras with code: %v", err)
	}
	if item.Paths[domain.PathCode] != filepath.Join(dir, "go-in-practice.code.zip") {
		t.Fatalf("unexpected code path %q", item.Paths[domain.PathCode])
	}
}

func TestNewPacktpubValidatesCredentials(t *testing.T) {
	if _, err := NewPacktpub(Site{BaseURL: "https://example.com", DownloadPath: "/d/%s/%s", CodePath: "/c/%s"}, nil, nil); err == nil {
		t.Fatalf("expected error without credentials")
	}
}

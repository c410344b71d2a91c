package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
)

// Site configures the packtpub claim provider.
type Site struct {
	BaseURL      string
	LoginPath    string
	DailyPath    string
	DownloadPath string // formatted with product id and format
	CodePath     string // formatted with product id
	Email        string
	Password     string
	UserAgent    string
	Timeout      time.Duration
}

// selectors tried in order when parsing an offer page.
var (
	titleSelectors = []string{
		".dotd-title h2",
		".book-top-block-info-title",
	}
	authorSelectors = []string{
		".dotd-main-book-summary .dotd-author",
		".book-top-block-info-authors",
	}
	descriptionSelectors = []string{
		".dotd-main-book-summary .dotd-description",
		".book-top-block-info-one-liner",
	}
	imageSelectors = []string{
		".dotd-main-book-image img",
		".book-top-block-image img",
	}
	claimSelectors = []string{
		"a.twelve-days-claim",
		".book-claim-token-inner a",
		`a[href*="freelearning-claim"]`,
	}
)

const (
	loginFormSelector  = "form#packt-user-login-form"
	loginErrorSelector = ".messages.error"
	loginFormID        = "packt_user_login_form"
)

type packtpub struct {
	site      Site
	client    HTTPClient
	converter *md.Converter
	log       logger.Logger
	now       func() time.Time
	loggedIn  bool
}

// NewPacktpub builds the claim provider for packtpub.com style free-learning pages.
func NewPacktpub(site Site, client HTTPClient, log logger.Logger) (ClaimProvider, error) {
	site.BaseURL = strings.TrimRight(strings.TrimSpace(site.BaseURL), "/")
	if site.BaseURL == "" {
		return nil, errors.New("site base url is empty")
	}
	if strings.TrimSpace(site.Email) == "" || site.Password == "" {
		return nil, errors.New("site email and password are required")
	}
	if site.DownloadPath == "" || site.CodePath == "" {
		return nil, errors.New("site download and code paths are required")
	}
	if client == nil {
		timeout := site.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = httpclient.NewRestyClient(timeout).SetUserAgent(site.UserAgent)
	}
	return &packtpub{
		site:      site,
		client:    client,
		converter: md.NewConverter("", true, nil),
		log:       logger.Ensure(log),
		now:       time.Now,
	}, nil
}

// ClaimDaily claims today's free item.
func (p *packtpub) ClaimDaily(ctx context.Context) (domain.ClaimResult, error) {
	return p.claim(ctx, p.url(p.site.DailyPath), domain.ScopeDaily)
}

// ClaimNewsletter claims the item announced on the given newsletter page.
func (p *packtpub) ClaimNewsletter(ctx context.Context, pageURL string) (domain.ClaimResult, error) {
	return p.claim(ctx, pageURL, domain.ScopeNewsletter)
}

func (p *packtpub) claim(ctx context.Context, pageURL string, source domain.Scope) (domain.ClaimResult, error) {
	doc, err := p.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.ClaimResult{}, err
	}

	if p.loggedIn && doc.Find(loginFormSelector).Length() > 0 {
		p.log.WarnObj("session expired, logging in again", "claim_meta", map[string]any{"page": pageURL})
		p.loggedIn = false
	}
	if !p.loggedIn {
		if err := p.login(ctx, doc, pageURL); err != nil {
			return domain.ClaimResult{}, err
		}
		// the offer block differs for authenticated sessions
		if doc, err = p.fetchDocument(ctx, pageURL); err != nil {
			return domain.ClaimResult{}, err
		}
	}

	item, ok := p.parseOffer(doc, pageURL)
	if !ok {
		return domain.NotAvailable(fmt.Sprintf("no free item available on %s", pageURL)), nil
	}
	item.Source = source

	id, err := productIDFromClaimURL(item.ClaimURL)
	if err != nil {
		return domain.ClaimResult{}, err
	}
	item.ID = id

	resp, err := p.client.Get(ctx, item.ClaimURL, nil)
	if err != nil {
		return domain.ClaimResult{}, fmt.Errorf("claim %s: %w", item.Title, err)
	}
	if rejectsSession(resp.StatusCode()) {
		p.loggedIn = false
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.ClaimResult{}, fmt.Errorf("claim %s returned status %d body: %s", item.Title, resp.StatusCode(), responseSnippet(resp.Body()))
	}

	p.log.DebugObj("item claimed", "claim_meta", map[string]any{
		"id":     item.ID,
		"title":  item.Title,
		"source": source,
	})
	return domain.Found(domain.NewClaimedItem(item, p.now())), nil
}

// login submits the site's login form using the hidden fields of the current page.
func (p *packtpub) login(ctx context.Context, doc *goquery.Document, pageURL string) error {
	form := map[string]string{
		"email":    p.site.Email,
		"password": p.site.Password,
		"op":       "Login",
		"form_id":  loginFormID,
	}
	target := p.url(p.site.LoginPath)

	if sel := doc.Find(loginFormSelector).First(); sel.Length() > 0 {
		sel.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
			name, ok := in.Attr("name")
			if !ok || name == "" {
				return
			}
			val, _ := in.Attr("value")
			form[name] = val
		})
		if action, ok := sel.Attr("action"); ok && strings.TrimSpace(action) != "" {
			target = resolveURL(action, pageURL)
		}
	}

	resp, err := p.client.PostForm(ctx, target, form, nil)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("login returned status %d", resp.StatusCode())
	}

	result, err := parseDocument(resp.Body())
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if msg := strings.TrimSpace(result.Find(loginErrorSelector).First().Text()); msg != "" {
		return fmt.Errorf("authentication failed: %s", msg)
	}

	p.loggedIn = true
	return nil
}

// rejectsSession reports whether status means the session cookie is no longer accepted.
func rejectsSession(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// parseOffer extracts the offer block; ok is false when no claim link is present.
func (p *packtpub) parseOffer(doc *goquery.Document, pageURL string) (domain.Item, bool) {
	claim := ""
	for _, sel := range claimSelectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			claim = resolveURL(href, pageURL)
			break
		}
	}
	if claim == "" {
		return domain.Item{}, false
	}

	meta := parseMeta(doc)
	item := domain.Item{
		Title:       firstNonEmpty(firstText(doc, titleSelectors), meta.Title),
		Author:      firstText(doc, authorSelectors),
		Description: firstNonEmpty(p.firstMarkdown(doc, descriptionSelectors), meta.Description),
		ImageURL:    resolveURL(firstNonEmpty(firstImage(doc, imageSelectors), meta.ImageURL), pageURL),
		URL:         pageURL,
		ClaimURL:    claim,
	}
	if item.Title == "" {
		return domain.Item{}, false
	}
	return item, true
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return strings.Join(strings.Fields(text), " ")
		}
	}
	return ""
}

func firstImage(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		for _, attr := range []string{"data-original", "src"} {
			if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}

func (p *packtpub) firstMarkdown(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		html, err := node.Html()
		if err != nil || strings.TrimSpace(html) == "" {
			continue
		}
		text, err := p.converter.ConvertString(html)
		if err != nil {
			p.log.WarnObj("description conversion failed", "convert_error", err.Error())
			return strings.TrimSpace(node.Text())
		}
		return strings.TrimSpace(text)
	}
	return ""
}

// Download saves the item in the given format under dir.
func (p *packtpub) Download(ctx context.Context, item *domain.ClaimedItem, format domain.Format, dir string) error {
	if item == nil {
		return errors.New("download: nil item")
	}
	src := p.url(fmt.Sprintf(p.site.DownloadPath, item.ID, format))
	dest := filepath.Join(dir, slugify(item.Title)+"."+string(format))

	resp, err := p.client.Download(ctx, src, dest, nil)
	if err != nil {
		return fmt.Errorf("download %s: %w", format, err)
	}
	if rejectsSession(resp.StatusCode()) {
		p.loggedIn = false
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("download %s returned status %d", format, resp.StatusCode())
	}

	item.SetPath(string(format), dest)
	p.log.InfoObj("item downloaded", "download_meta", map[string]any{
		"id":     item.ID,
		"format": format,
		"path":   dest,
	})
	return nil
}

// DownloadExtras saves the source code archive (when the item has one) and the cover.
func (p *packtpub) DownloadExtras(ctx context.Context, item *domain.ClaimedItem, dir string) error {
	if item == nil {
		return errors.New("download extras: nil item")
	}
	stem := slugify(item.Title)

	codeDest := filepath.Join(dir, stem+".code.zip")
	resp, err := p.client.Download(ctx, p.url(fmt.Sprintf(p.site.CodePath, item.ID)), codeDest, nil)
	if err != nil {
		return fmt.Errorf("download source code: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		item.SetPath(domain.PathCode, codeDest)
	case http.StatusNotFound:
		p.log.InfoObj("item has no source code", "download_meta", map[string]any{"id": item.ID})
	default:
		return fmt.Errorf("download source code returned status %d", resp.StatusCode())
	}

	if item.ImageURL == "" {
		return nil
	}
	coverDest := filepath.Join(dir, stem+extOf(item.ImageURL, ".jpg"))
	resp, err = p.client.Download(ctx, item.ImageURL, coverDest, nil)
	if err != nil {
		return fmt.Errorf("download cover: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("download cover returned status %d", resp.StatusCode())
	}
	item.SetPath(domain.PathCover, coverDest)
	return nil
}

func (p *packtpub) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := p.client.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d body: %s", pageURL, resp.StatusCode(), responseSnippet(resp.Body()))
	}
	return parseDocument(resp.Body())
}

func (p *packtpub) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.site.BaseURL + path
}

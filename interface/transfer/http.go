package transfer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/airbusgeo/modis-grabber/service"
	"github.com/cavaliercoder/grab"
)

// HTTP implements Transfer for http(s) archives serving HTML directory indexes (e.g. LAADS DAAC)
type HTTP struct {
	client *grab.Client
	token  string
}

// NewHTTP creates a new HTTP transfer.
// If token is not empty, it is sent as a Bearer token, including after redirections to the same host.
// timeout applies to each request (0: no timeout).
func NewHTTP(token string, timeout time.Duration) *HTTP {
	client := grab.NewClient()
	client.UserAgent = "modis-grabber"
	client.HTTPClient = &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirectAndCopyAuth,
	}
	return &HTTP{client: client, token: token}
}

// Name implements Transfer
func (h *HTTP) Name() string {
	return "HTTP"
}

func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	// The token is only sent to the host of the first request
	if req.URL.Host != via[0].URL.Host {
		req.Header.Del("Authorization")
		return nil
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Set("Authorization", auth[0])
	}
	return nil
}

func (h *HTTP) authorize(req *http.Request) {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}

// statusError classifies the HTTP status code of a failed request
func statusError(remote string, code int, err error) error {
	switch code {
	case http.StatusNotFound, http.StatusGone:
		return notFound(remote, err)
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return service.MakeTemporary(err)
	}
	return err
}

// Fetch implements Transfer
func (h *HTTP) Fetch(ctx context.Context, remote, localDir string) (string, error) {
	req, err := grab.NewRequest(localDir, remote)
	if err != nil {
		return "", fmt.Errorf("HTTP.Fetch.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)
	req.NoResume = true
	h.authorize(req.HTTPRequest)

	resp := h.client.Do(req)
	displayProgress(ctx, "HTTP:"+path.Base(remote), resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("HTTP.Fetch[%s]: %w", remote, err)
		if resp.HTTPResponse == nil {
			return "", service.MakeTemporary(err)
		}
		return "", statusError(remote, resp.HTTPResponse.StatusCode, err)
	}
	return resp.Filename, nil
}

// List implements Transfer.
// It returns the files linked from the HTML index of the directory.
func (h *HTTP) List(ctx context.Context, remote string) ([]string, error) {
	dirURL, err := url.Parse(strings.TrimSuffix(remote, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("HTTP.List.Parse: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dirURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTP.List.NewRequest: %w", err)
	}
	h.authorize(req)
	req.Header.Set("User-Agent", h.client.UserAgent)

	resp, err := h.client.HTTPClient.Do(req)
	if err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("HTTP.List[%s]: %w", remote, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(remote, resp.StatusCode, fmt.Errorf("HTTP.List[%s]: %s", remote, resp.Status))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("HTTP.List[%s].Parse: %w", remote, err))
	}
	return listingEntries(dirURL, doc), nil
}

// listingEntries returns the names of the files linked from the index, in order of appearance and without duplicates.
// Links to sub-directories, to parent directories or to other sites are ignored.
func listingEntries(dirURL *url.URL, doc *goquery.Document) []string {
	var names []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		u := dirURL.ResolveReference(ref)
		if u.Host != dirURL.Host || strings.HasSuffix(u.Path, "/") || path.Dir(u.Path)+"/" != dirURL.Path {
			return
		}
		name := path.Base(u.Path)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})
	return names
}

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/version"
)

// releasesIDPlaceholder is the URI template suffix GitHub puts in releases_url.
const releasesIDPlaceholder = "{/id}"

var (
	// ErrRateLimited is returned when GitHub refuses a request because of its rate limits.
	ErrRateLimited = errors.New("github rate limit exceeded")
	// ErrMalformedMetadata is returned when the repository payload cannot be decoded.
	ErrMalformedMetadata = errors.New("malformed repository metadata")
	// ErrBadRepository is returned for identifiers that are not "owner/repo".
	ErrBadRepository = errors.New("repository must be in owner/repo form")
	// errBadHTTPStatus marks unexpected download responses.
	errBadHTTPStatus = errors.New("unexpected http status")
)

// Client wraps the go-github client with the calls the resolver and pipeline need.
type Client struct {
	// api is the go-github client; its transport carries the token when one is set.
	api *gh.Client
	// downloads fetches release assets without credentials so the token never
	// follows a redirect to the asset CDN.
	downloads *http.Client
}

// Option configures a Client.
type Option func(*options)

type options struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// WithToken authenticates API requests with a bearer token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = strings.TrimSpace(token)
	}
}

// WithBaseURL points the client at another API root, such as an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient sets the transport used for API calls and downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// NewClient builds a Client. Without a token requests are anonymous.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	o := new(options)
	for _, opt := range opts {
		opt(o)
	}

	downloads := o.httpClient
	if downloads == nil {
		downloads = http.DefaultClient
	}

	apiHTTP := downloads
	if o.token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, downloads)
		apiHTTP = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token}))
	}

	api := gh.NewClient(apiHTTP)
	api.UserAgent = version.UserAgent()

	if o.baseURL != "" {
		base, err := url.Parse(strings.TrimRight(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}

		api.BaseURL = base
	}

	return &Client{
		api:       api,
		downloads: downloads,
	}, nil
}

// SplitRepository splits "owner/repo".
func SplitRepository(repository string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%q: %w", repository, ErrBadRepository)
	}

	return owner, repo, nil
}

// Metadata fetches GET /repos/{owner}/{repo}.
// Rate limiting yields ErrRateLimited, an undecodable body ErrMalformedMetadata.
func (c *Client) Metadata(ctx context.Context, repository string) (*app.Metadata, error) {
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return nil, err
	}

	details, resp, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, classify(resp, err)
	}

	if details.GetReleasesURL() == "" {
		return nil, fmt.Errorf("%s: releases_url missing: %w", repository, ErrMalformedMetadata)
	}

	return &app.Metadata{
		Description: details.GetDescription(),
		ReleasesURL: details.GetReleasesURL(),
	}, nil
}

// Releases fetches every release listed by the metadata's releases URL, newest first.
func (c *Client) Releases(ctx context.Context, meta *app.Metadata) ([]*app.Release, error) {
	var releases []*gh.RepositoryRelease
	if err := c.get(ctx, ReleasesURL(meta.ReleasesURL, 0), &releases); err != nil {
		return nil, err
	}

	result := make([]*app.Release, 0, len(releases))
	for _, r := range releases {
		result = append(result, toRelease(r))
	}

	return result, nil
}

// Release fetches a single release by its numeric id.
func (c *Client) Release(ctx context.Context, meta *app.Metadata, id int64) (*app.Release, error) {
	return c.ReleaseAt(ctx, ReleasesURL(meta.ReleasesURL, id))
}

// ReleaseAt fetches a single release from a fully expanded releases URL.
func (c *Client) ReleaseAt(ctx context.Context, releaseURL string) (*app.Release, error) {
	var release gh.RepositoryRelease
	if err := c.get(ctx, releaseURL, &release); err != nil {
		return nil, err
	}

	return toRelease(&release), nil
}

// Download opens a streamed GET of an asset. The returned length is -1 when unknown.
// The caller must close the body.
func (c *Client) Download(ctx context.Context, assetURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create download request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.downloads.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, 0, fmt.Errorf("download %s, %s: %w", redactURL(assetURL), resp.Status, errBadHTTPStatus)
	}

	return resp.Body, resp.ContentLength, nil
}

// ReleasesURL expands the releases URL template: id 0 lists all releases.
func ReleasesURL(template string, id int64) string {
	suffix := ""
	if id != 0 {
		suffix = "/" + strconv.FormatInt(id, 10)
	}

	return strings.Replace(template, releasesIDPlaceholder, suffix, 1)
}

// get issues an API GET against an absolute URL and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, rawURL string, v any) error {
	req, err := c.api.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.api.Do(ctx, req, v)
	if err != nil {
		return classify(resp, err)
	}

	return nil
}

// IsRateLimited reports whether err stems from GitHub rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// classify maps go-github failures onto the package errors.
func classify(resp *gh.Response, err error) error {
	var (
		rateErr   *gh.RateLimitError
		abuseErr  *gh.AbuseRateLimitError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests):
		return fmt.Errorf("%w: %s", ErrRateLimited, resp.Status)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrMalformedMetadata, err)
	default:
		return err
	}
}

func toRelease(r *gh.RepositoryRelease) *app.Release {
	assets := make([]app.Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		assets = append(assets, app.Asset{
			Name:        a.GetName(),
			Size:        int64(a.GetSize()),
			DownloadURL: a.GetBrowserDownloadURL(),
		})
	}

	return &app.Release{
		TagName:    r.GetTagName(),
		Prerelease: r.GetPrerelease(),
		ID:         r.GetID(),
		Assets:     assets,
	}
}

// redactURL drops query strings, which may carry signed download tokens.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

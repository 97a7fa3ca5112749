// Package hub reads files from a Hugging Face compatible model hub over
// HTTP, using HEAD requests for identities and Range requests for content.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/internal/telemetry"
	"github.com/marmos91/tensorscope/pkg/remote"
)

const (
	// DefaultEndpoint is the public Hugging Face hub.
	DefaultEndpoint = "https://huggingface.co"

	// DefaultTimeout bounds a single request, including reading its body.
	DefaultTimeout = 30 * time.Second

	// maxGetSize bounds whole-file downloads such as the shard index.
	maxGetSize = 64 << 20

	backendName = "hub"
)

// Response headers set by the hub on file resolution.
const (
	HeaderRepoCommit = "X-Repo-Commit"
	HeaderLinkedETag = "X-Linked-Etag"
	HeaderLinkedSize = "X-Linked-Size"
	HeaderErrorCode  = "X-Error-Code"
	HeaderErrorMsg   = "X-Error-Message"
)

var commitPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Config configures a hub Client.
type Config struct {
	Endpoint  string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Client is a remote.Source backed by a hub repository.
type Client struct {
	endpoint  string
	repo      string
	revision  string
	token     string
	userAgent string

	// httpClient follows every redirect, headClient stops at redirects that
	// leave the hub host so the hub's own X-* headers are observed.
	httpClient *http.Client
	headClient *http.Client
}

var _ remote.Source = (*Client)(nil)

// New creates a client for repo at revision.
func New(repo, revision string, cfg Config) (*Client, error) {
	if err := remote.ValidateRepo(repo); err != nil {
		return nil, err
	}
	if revision == "" {
		return nil, fmt.Errorf("empty revision")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid hub endpoint %q", cfg.Endpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "tensorscope"
	}

	c := &Client{
		endpoint:  endpoint,
		repo:      repo,
		revision:  revision,
		token:     cfg.Token,
		userAgent: ua,
	}
	c.setHTTPClient(&http.Client{Timeout: timeout})
	return c, nil
}

// WithHTTPClient returns a copy of c that sends requests through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.setHTTPClient(hc)
	return &cp
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) setHTTPClient(hc *http.Client) {
	c.httpClient = hc
	head := *hc
	head.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if req.URL.Host != via[0].URL.Host {
			return http.ErrUseLastResponse
		}
		return nil
	}
	c.headClient = &head
}

// Repo implements remote.Source.
func (c *Client) Repo() string { return c.repo }

// Revision implements remote.Source.
func (c *Client) Revision() string { return c.revision }

// Endpoint returns the hub base URL.
func (c *Client) Endpoint() string { return c.endpoint }

func escapeSegments(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// FileURL returns the resolve URL of file at the client's revision.
func (c *Client) FileURL(file string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s",
		c.endpoint, escapeSegments(c.repo), url.PathEscape(c.revision), escapeSegments(file))
}

func (c *Client) revisionURL() string {
	return fmt.Sprintf("%s/api/models/%s/revision/%s",
		c.endpoint, escapeSegments(c.repo), url.PathEscape(c.revision))
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", remote.ErrRemote, req.Method, req.URL, err)
	}
	telemetry.SetAttributes(req.Context(), telemetry.HTTPStatus(resp.StatusCode))
	return resp, nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

// errorFromResponse builds an APIError from a failed response.
func errorFromResponse(req *http.Request, resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		URL:        req.URL.String(),
		Code:       resp.Header.Get(HeaderErrorCode),
		Message:    resp.Header.Get(HeaderErrorMsg),
	}
	if apiErr.Message == "" && req.Method != http.MethodHead {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	return apiErr
}

// ResolveRevision returns the commit the client's revision points to.
// Full commit hashes are returned without a request.
func (c *Client) ResolveRevision(ctx context.Context) (string, error) {
	if commitPattern.MatchString(c.revision) {
		return c.revision, nil
	}

	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "resolve_revision",
		telemetry.Repo(c.repo), telemetry.Revision(c.revision))
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, c.revisionURL())
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(c.httpClient, req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return "", err
	}
	defer closeBody(resp)

	if resp.StatusCode >= 400 {
		apiErr := errorFromResponse(req, resp)
		telemetry.RecordError(ctx, apiErr)
		return "", apiErr
	}

	var info struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGetSize)).Decode(&info); err != nil {
		return "", fmt.Errorf("%w: decoding revision info: %w", remote.ErrRemote, err)
	}
	if info.SHA == "" {
		return "", fmt.Errorf("%w: revision info for %s@%s has no sha", remote.ErrRemote, c.repo, c.revision)
	}
	telemetry.SetAttributes(ctx, telemetry.Commit(info.SHA))
	return info.SHA, nil
}

// Stat issues a HEAD request for file. Redirects to other hosts (the LFS
// CDN) are not followed: the hub answers with the linked etag and commit on
// the redirect response itself.
func (c *Client) Stat(ctx context.Context, file string) (remote.Identity, error) {
	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "stat", telemetry.Shard(file))
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodHead, c.FileURL(file))
	if err != nil {
		return remote.Identity{}, err
	}
	// Compressed responses would report the encoded length.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.send(c.headClient, req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return remote.Identity{}, err
	}
	defer closeBody(resp)

	if resp.StatusCode >= 400 {
		apiErr := errorFromResponse(req, resp)
		telemetry.RecordError(ctx, apiErr)
		return remote.Identity{}, apiErr
	}

	etag := resp.Header.Get(HeaderLinkedETag)
	if etag == "" {
		etag = resp.Header.Get("ETag")
	}
	etag = remote.NormalizeETag(etag)
	if etag == "" {
		return remote.Identity{}, fmt.Errorf("%w: HEAD %s returned no ETag", remote.ErrRemote, req.URL)
	}

	id := remote.Identity{
		ETag:     etag,
		Revision: resp.Header.Get(HeaderRepoCommit),
	}
	if id.Revision == "" {
		id.Revision = c.revision
	}
	if s := resp.Header.Get(HeaderLinkedSize); s != "" {
		id.Size, _ = strconv.ParseInt(s, 10, 64)
	} else if resp.StatusCode < 300 && resp.ContentLength > 0 {
		id.Size = resp.ContentLength
	}

	telemetry.SetAttributes(ctx, telemetry.ETag(id.ETag), telemetry.Commit(id.Revision))
	logger.DebugCtx(ctx, "hub stat", logger.KeyShard, file, logger.KeyETag, id.ETag,
		logger.KeyCommit, id.Revision, logger.KeyStatus, resp.StatusCode)
	return id, nil
}

// ReadRange fetches bytes [offset, offset+length) of file.
func (c *Client) ReadRange(ctx context.Context, file string, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}

	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "range_read",
		append(telemetry.Range(offset, length), telemetry.Shard(file))...)
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, c.FileURL(file))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.send(c.httpClient, req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	defer closeBody(resp)

	switch {
	case resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK && offset == 0:
		// Range ignored; the body starts at offset 0 and is truncated below.
	case resp.StatusCode == http.StatusOK:
		return nil, fmt.Errorf("%w: GET %s ignored range starting at %d", remote.ErrRemote, req.URL, offset)
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return nil, fmt.Errorf("%w: range %d+%d of %s not satisfiable", remote.ErrShortRead, offset, length, file)
	default:
		apiErr := errorFromResponse(req, resp)
		telemetry.RecordError(ctx, apiErr)
		return nil, apiErr
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(resp.Body, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: got %d of %d bytes of %s at %d", remote.ErrShortRead, n, length, file, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", remote.ErrRemote, file, err)
	}
	return buf, nil
}

// Get downloads a whole file. It is meant for small files like the shard
// index and refuses bodies above 64MiB.
func (c *Client) Get(ctx context.Context, file string) ([]byte, error) {
	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "get", telemetry.Shard(file))
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, c.FileURL(file))
	if err != nil {
		return nil, err
	}

	resp, err := c.send(c.httpClient, req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode >= 400 {
		apiErr := errorFromResponse(req, resp)
		if !apiErr.IsNotFound() {
			telemetry.RecordError(ctx, apiErr)
		}
		return nil, apiErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGetSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", remote.ErrRemote, file, err)
	}
	if len(body) > maxGetSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", remote.ErrRemote, file, maxGetSize)
	}
	return body, nil
}

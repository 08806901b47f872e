// Package blobstore treats a version-controlled GitHub repository as the
// system's permanent byte store. Every write is a commit; file SHAs act as
// revision tokens so concurrent editors of the same JSON collection cannot
// silently overwrite each other.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/time/rate"

	"fanai-server/internal/domain"
	"fanai-server/internal/infra"
)

// ErrRepositoryFull marks a write the backing repository refused for size or
// validation reasons. Callers react by rotating to a fresh repository.
var ErrRepositoryFull = errors.New("blobstore: repository rejected write")

// Options configures a Client.
type Options struct {
	Token      string
	Owner      string
	Branch     string
	BaseURL    string
	HTTPClient *http.Client
	// RequestsPerSecond throttles calls against GitHub's secondary rate
	// limits. Zero means the default of 3 rps.
	RequestsPerSecond float64
	Logger            *infra.Logger
}

// Client wraps the GitHub contents API with get/put semantics. It is safe
// for concurrent use.
type Client struct {
	gh      *github.Client
	owner   string
	branch  string
	limiter *rate.Limiter
	logger  infra.Logger
}

// NewClient constructs a Client. The token and owner are required; branch
// defaults to "main".
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("blobstore: token is required")
	}
	if strings.TrimSpace(opts.Owner) == "" {
		return nil, errors.New("blobstore: owner is required")
	}

	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	gh := github.NewClient(httpClient).WithAuthToken(opts.Token)
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("blobstore: parse base url: %w", err)
		}
		gh.BaseURL = base
		gh.UploadURL = base
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}

	var logger infra.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		gh:      gh,
		owner:   opts.Owner,
		branch:  branch,
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
		logger:  logger,
	}, nil
}

// Get fetches the blob at path in repo and returns its bytes plus the file
// SHA, the revision token a later Put of the same path must echo back.
// Missing paths return domain.ErrNotFound; probing for absent files is a
// normal, expected outcome here.
func (c *Client) Get(ctx context.Context, repo, path string) ([]byte, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, repo, path, &github.RepositoryContentGetOptions{Ref: c.branch})
	if err != nil {
		if statusCode(err, resp) == http.StatusNotFound {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("blobstore: get %s: %w", path, err)
	}
	if file == nil {
		// Path resolved to a directory listing.
		return nil, "", domain.ErrNotFound
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("blobstore: decode %s: %w", path, err)
	}
	return []byte(content), file.GetSHA(), nil
}

// Put writes data to path in repo as a new commit. An empty expectedRev
// creates the file; a non-empty one updates it and guards against lost
// concurrent edits. Size-limit and validation refusals map to
// ErrRepositoryFull so callers can rotate.
func (c *Client) Put(ctx context.Context, repo, path string, data []byte, message, expectedRev string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
		Branch:  github.String(c.branch),
	}

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
		err  error
	)
	if expectedRev == "" {
		res, resp, err = c.gh.Repositories.CreateFile(ctx, c.owner, repo, path, opts)
	} else {
		opts.SHA = github.String(expectedRev)
		res, resp, err = c.gh.Repositories.UpdateFile(ctx, c.owner, repo, path, opts)
	}
	if err != nil {
		switch statusCode(err, resp) {
		case http.StatusForbidden, http.StatusUnprocessableEntity:
			return "", fmt.Errorf("%w: %s", ErrRepositoryFull, path)
		}
		return "", fmt.Errorf("blobstore: put %s: %w", path, err)
	}

	if res != nil && res.Content != nil {
		return res.Content.GetSHA(), nil
	}
	return "", nil
}

// CreateRepository creates a fresh private repository under the
// authenticated account, initialized so the default branch exists.
func (c *Client) CreateRepository(ctx context.Context, name, description string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, _, err := c.gh.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(name),
		Private:     github.Bool(true),
		Description: github.String(description),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("blobstore: create repository %s: %w", name, err)
	}
	c.logger.Info().Str("repository", name).Msg("blobstore: created repository")
	return nil
}

func statusCode(err error, resp *github.Response) int {
	var ger *github.ErrorResponse
	if errors.As(err, &ger) && ger.Response != nil {
		return ger.Response.StatusCode
	}
	if resp != nil {
		return resp.StatusCode
	}
	return 0
}

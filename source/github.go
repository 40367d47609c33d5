package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"fortio.org/log"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// GitHubPrefix marks a source fetched from a GitHub repository:
// github:owner/repo/path/to/file.lua[@ref]
const GitHubPrefix = "github:"

var ErrNotFound = errors.New("not found")

// isNotFoundError checks if an error is a GitHub API 404 (or 403, returned for private repos).
func isNotFoundError(err error) bool {
	var ge *github.ErrorResponse
	if errors.As(err, &ge) && ge.Response != nil {
		return ge.Response.StatusCode == http.StatusNotFound || ge.Response.StatusCode == http.StatusForbidden
	}
	return false
}

// NewGitHubClient returns a client authenticated with token when it is set.
// baseURL overrides the API endpoint (GitHub Enterprise or tests) when not empty.
func NewGitHubClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
		log.LogVf("Using authenticated GitHub API access.")
	} else {
		log.LogVf("GITHUB_TOKEN not set, using unauthenticated GitHub API access (may hit rate limits).")
	}
	client := github.NewClient(httpClient)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API url %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// ClientWrapper wraps the GitHub client and the response cache.
type ClientWrapper struct {
	client *github.Client
	cache  *Cache
}

func NewClientWrapper(client *github.Client, cache *Cache) *ClientWrapper {
	if cache == nil {
		cache = &Cache{}
	}
	return &ClientWrapper{client: client, cache: cache}
}

// Contents returns the decoded content of one file. Only pinned refs are cached:
// the default branch moves, a tag or commit does not.
func (cw *ClientWrapper) Contents(ctx context.Context, owner, repo, path, ref string) (string, error) {
	cacheable := ref != ""
	keyParts := []string{"GetContents", owner, repo, path, ref}
	cacheKey := cw.cache.Key(keyParts...)
	if cacheable {
		var cached CachedContentResponse
		hit, readErr := cw.cache.Read(cacheKey, &cached)
		if readErr != nil {
			log.Errf("Error reading cache for %v: %v", keyParts, readErr)
		}
		if hit && cached.Found && cached.FileContent != nil {
			log.LogVf("Cache hit for GetContents repo=%s/%s path=%s ref=%s", owner, repo, path, ref)
			return cached.FileContent.GetContent()
		}
	}
	log.Infof("Fetching %s/%s/%s ref=%q from GitHub", owner, repo, path, ref)
	var opt *github.RepositoryContentGetOptions
	if ref != "" {
		opt = &github.RepositoryContentGetOptions{Ref: ref}
	}
	fileContent, _, _, err := cw.client.Repositories.GetContents(ctx, owner, repo, path, opt)
	if err != nil {
		if isNotFoundError(err) {
			return "", fmt.Errorf("%s/%s/%s@%s: %w", owner, repo, path, ref, ErrNotFound)
		}
		return "", err
	}
	if fileContent == nil {
		return "", fmt.Errorf("%s/%s/%s is a directory, not a file", owner, repo, path)
	}
	content, err := fileContent.GetContent()
	if err != nil {
		return "", fmt.Errorf("error decoding content of %s/%s/%s: %w", owner, repo, path, err)
	}
	if cacheable {
		if writeErr := cw.cache.Write(cacheKey, CachedContentResponse{Found: true, FileContent: fileContent}); writeErr != nil {
			log.Errf("Error writing cache for %v: %v", keyParts, writeErr)
		}
	}
	return content, nil
}

// GitHub is a source read from a repository through the contents API.
type GitHub struct {
	Owner, Repo, Path, Ref string

	client *ClientWrapper
}

// ParseGitHub parses "github:owner/repo/path[@ref]".
func ParseGitHub(name string) (*GitHub, error) {
	rest, ok := strings.CutPrefix(name, GitHubPrefix)
	if !ok {
		return nil, fmt.Errorf("%q is not a %s source", name, GitHubPrefix)
	}
	g := &GitHub{}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		g.Ref = rest[at+1:]
		rest = rest[:at]
		if g.Ref == "" {
			return nil, fmt.Errorf("empty ref in %q", name)
		}
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || strings.Trim(parts[2], "/") == "" {
		return nil, fmt.Errorf("invalid GitHub source %q, want %sowner/repo/path[@ref]", name, GitHubPrefix)
	}
	g.Owner, g.Repo, g.Path = parts[0], parts[1], strings.Trim(parts[2], "/")
	return g, nil
}

func (g *GitHub) Name() string {
	n := GitHubPrefix + g.Owner + "/" + g.Repo + "/" + g.Path
	if g.Ref != "" {
		n += "@" + g.Ref
	}
	return n
}

func (g *GitHub) Open(ctx context.Context) (io.ReadCloser, error) {
	if g.client == nil {
		return nil, errors.New("no GitHub client configured")
	}
	content, err := g.client.Contents(ctx, g.Owner, g.Repo, g.Path, g.Ref)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// Package remote fetches release descriptors, manifests and project files
// from a static HTTP file host that mirrors the project tree.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/imroc/req/v3"

	"github.com/upgradekit/upgradekit/internal/manifest"
	"github.com/upgradekit/upgradekit/internal/release"
	"github.com/upgradekit/upgradekit/internal/utils"
	"github.com/upgradekit/upgradekit/internal/version"
)

var userAgent = fmt.Sprintf("UpgradeKit/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Client talks to one remote project root. The release directory is a fixed
// subpath beneath it, mirroring the local layout, and every manifest-relative
// path resolves to {baseURL}/{path}.
type Client struct {
	http       *req.Client
	baseURL    string
	releaseURL string
}

func NewClient(baseURL string) *Client {
	baseURL = utils.NormalizePath(baseURL)
	return &Client{
		http: req.C().
			SetCommonRetryCount(3).
			SetCommonRetryFixedInterval(1 * time.Second).
			SetTimeout(5 * time.Minute).
			SetUserAgent(userAgent),
		baseURL:    baseURL,
		releaseURL: baseURL + "/" + release.DirName,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// FileURL resolves a manifest-relative path to its download URL.
func (c *Client) FileURL(relativePath string) string {
	return c.baseURL + "/" + relativePath
}

// ConfigURL is the remote release descriptor's location.
func (c *Client) ConfigURL() string {
	return c.releaseURL + "/" + release.ConfigFileName
}

// ManifestURL is the remote manifest's location, as named by the descriptor.
func (c *Client) ManifestURL(cfg *release.Config) string {
	return c.releaseURL + "/" + cfg.HashDB
}

// ReleaseConfig fetches and validates the remote release descriptor.
func (c *Client) ReleaseConfig(ctx context.Context) (*release.Config, error) {
	url := c.ConfigURL()

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnreachable, url, err)
	}
	if resp.IsErrorState() {
		return nil, &DownloadError{URL: url, StatusCode: resp.GetStatusCode()}
	}

	cfg, err := release.Parse(resp.Bytes())
	if err != nil {
		return nil, fmt.Errorf("remote %q: %w", url, err)
	}
	return cfg, nil
}

// FetchManifest downloads the remote manifest named by the descriptor to
// destPath and opens it.
func (c *Client) FetchManifest(ctx context.Context, cfg *release.Config, destPath string) (*manifest.Store, error) {
	url := c.ManifestURL(cfg)
	if _, err := c.Fetch(ctx, url, destPath); err != nil {
		return nil, err
	}
	return manifest.OpenStore(destPath)
}

// Fetch streams a single file to destPath, creating parent directories.
// Large files are never buffered in memory.
func (c *Client) Fetch(ctx context.Context, url, destPath string) (string, error) {
	if err := utils.EnsureParent(destPath); err != nil {
		return "", fmt.Errorf("remote: download %q: %w", url, err)
	}

	resp, err := c.http.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetOutputFile(destPath).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnreachable, url, err)
	}

	if resp.IsErrorState() {
		// The error body lands in destPath because of SetOutputFile.
		os.Remove(destPath)
		return "", &DownloadError{URL: url, StatusCode: resp.GetStatusCode()}
	}

	slog.Debug("downloaded", "url", url, "dest", destPath)
	return destPath, nil
}

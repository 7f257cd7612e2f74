// Package model manages the on-disk face-detection model artifact.
//
// Manager is the single gatekeeper for the artifact: detectors ask it for a
// path and trust that the file behind that path has passed validation. Nothing
// else in the module opens, writes or deletes the file.
//
// A cached artifact is valid when it exists, carries the configured extension
// (compared case-insensitively) and is at least MinSizeBytes long. An invalid
// cached file is deleted and fetched again. Downloads stream into a temporary
// file next to the target and are renamed into place only once complete, so a
// failed download never leaves a partial artifact behind.
package model

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/redacterr"
)

// Manager guarantees a validated, cached model artifact.
//
// Manager is safe for concurrent use; EnsureAvailable calls are serialized so
// two callers never download the same artifact at once.
type Manager struct {
	cfg    config.Model
	client *http.Client

	mu sync.Mutex
}

// Info describes the cached artifact.
type Info struct {
	Path   string  `json:"path"`
	URL    string  `json:"url"`
	Exists bool    `json:"exists"`
	SizeMB float64 `json:"size_mb"`
	Valid  bool    `json:"valid"`
}

// NewManager builds a Manager. The HTTP client is derived from cfg alone:
// ProxyURL, InsecureSkipVerify and Timeout. Environment proxy variables are not
// consulted here; config.Load resolves them into cfg.ProxyURL.
func NewManager(cfg config.Model) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, client: client}, nil
}

func newHTTPClient(cfg config.Model) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:             nil,
		ForceAttemptHTTP2: true,
	}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, redacterr.E(redacterr.Configuration, "model.proxy", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}

// Path returns where the artifact lives, whether or not it exists yet.
func (m *Manager) Path() string {
	return m.cfg.Path()
}

// EnsureAvailable returns the path of a valid artifact, downloading it when the
// cache is empty or holds an invalid file.
//
// Errors are tagged redacterr.ModelDownload when no transfer succeeded and
// redacterr.ModelLoad when a transfer completed but the result failed
// validation.
func (m *Manager) EnsureAvailable(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.Path()
	if _, err := os.Stat(path); err == nil {
		if m.Validate() {
			return path, nil
		}
		log.Printf("Cached model %s is invalid, downloading again", path)
		if err := os.Remove(path); err != nil {
			return "", redacterr.EPath(redacterr.ModelLoad, "model.ensure", path, err)
		}
	}

	if err := m.download(ctx); err != nil {
		return "", err
	}
	return path, nil
}

// Validate reports whether the cached artifact exists, has the configured
// extension and meets the minimum size.
func (m *Manager) Validate() bool {
	path := m.Path()
	if !strings.EqualFold(filepath.Ext(path), m.cfg.Extension) {
		return false
	}
	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() {
		return false
	}
	return stat.Size() >= m.cfg.MinSizeBytes
}

// ClearCache deletes the artifact. It reports whether a file was removed.
func (m *Manager) ClearCache() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.Path()
	err := os.Remove(path)
	switch {
	case err == nil:
		log.Printf("Cleared model cache: %s", path)
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to clear model cache: %w", err)
	}
}

// Info reports the cache state without downloading anything.
func (m *Manager) Info() Info {
	info := Info{Path: m.Path(), URL: m.cfg.URL}
	if stat, err := os.Stat(info.Path); err == nil {
		info.Exists = true
		info.SizeMB = float64(stat.Size()) / (1024 * 1024)
		info.Valid = m.Validate()
	}
	return info
}

// download fetches the artifact into a temporary file and renames it into
// place. The temporary file is removed on every failure path.
func (m *Manager) download(ctx context.Context) error {
	path := m.Path()
	if err := os.MkdirAll(m.cfg.CacheDir, 0o755); err != nil {
		return redacterr.EPath(redacterr.ModelDownload, "model.download", m.cfg.CacheDir, err)
	}

	log.Printf("Downloading model: %s", m.cfg.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.URL, nil)
	if err != nil {
		return redacterr.E(redacterr.ModelDownload, "model.download", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return redacterr.E(redacterr.ModelDownload, "model.download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return redacterr.Errorf(redacterr.ModelDownload, "model.download", "unexpected status %s from %s", resp.Status, m.cfg.URL)
	}

	tmp, err := os.CreateTemp(m.cfg.CacheDir, "."+m.cfg.Filename+".part-*")
	if err != nil {
		return redacterr.E(redacterr.ModelDownload, "model.download", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return redacterr.E(redacterr.ModelDownload, "model.download", fmt.Errorf("transfer interrupted after %d bytes: %w", written, err))
	}
	if err := tmp.Close(); err != nil {
		return redacterr.E(redacterr.ModelDownload, "model.download", err)
	}

	if written < m.cfg.MinSizeBytes {
		return redacterr.Errorf(redacterr.ModelLoad, "model.download", "downloaded model is %d bytes, want at least %d", written, m.cfg.MinSizeBytes)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return redacterr.EPath(redacterr.ModelDownload, "model.download", path, err)
	}
	committed = true

	if !m.Validate() {
		os.Remove(path)
		return redacterr.EPath(redacterr.ModelLoad, "model.download", path, fmt.Errorf("downloaded model failed validation"))
	}

	log.Printf("Model saved: %s (%d bytes)", path, written)
	return nil
}

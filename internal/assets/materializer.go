// Package assets turns external byte sources (remote clip URLs, data
// URIs, local font files, raw bytes) into named workspace entries.
package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BrainSnack9/shorts-factory/internal/engine"
	"github.com/BrainSnack9/shorts-factory/internal/logger"
)

// ErrHostNotAllowed rejects a remote URL whose host is not on the
// allow-list, before any request goes out.
var ErrHostNotAllowed = errors.New("host not allowed")

const userAgent = "Mozilla/5.0 (compatible; VideoProxy/1.0)"

type Materializer struct {
	log     *logger.Logger
	client  *http.Client
	allowed map[string]struct{}
}

func NewMaterializer(log *logger.Logger, allowedHosts []string) *Materializer {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}
	return &Materializer{
		log:     log.With("component", "assets"),
		client:  &http.Client{Timeout: 2 * time.Minute},
		allowed: allowed,
	}
}

// CheckHost validates a remote URL against the allow-list.
func (m *Materializer) CheckHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if _, ok := m.allowed[strings.ToLower(u.Hostname())]; !ok {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return nil
}

// Fetch downloads an allow-listed remote resource and returns its bytes
// and content type.
func (m *Materializer) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := m.CheckHost(rawURL); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// FromURL materializes a remote URL or a data URI into the named entry.
func (m *Materializer) FromURL(ctx context.Context, eng engine.Engine, name, rawURL string) error {
	if strings.HasPrefix(rawURL, "data:") {
		data, err := DecodeDataURI(rawURL)
		if err != nil {
			return err
		}
		return eng.WriteEntry(name, data)
	}

	data, _, err := m.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	return eng.WriteEntry(name, data)
}

// FromBytes materializes raw bytes into the named entry.
func (m *Materializer) FromBytes(eng engine.Engine, name string, data []byte) error {
	return eng.WriteEntry(name, data)
}

// FromFile materializes a local file (fonts) into the named entry.
func (m *Materializer) FromFile(eng engine.Engine, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return eng.WriteEntry(name, data)
}

// DecodeDataURI decodes a base64 data URI payload.
func DecodeDataURI(uri string) ([]byte, error) {
	idx := strings.Index(uri, ",")
	if idx < 0 || !strings.Contains(uri[:idx], ";base64") {
		return nil, fmt.Errorf("unsupported data uri")
	}
	data, err := base64.StdEncoding.DecodeString(uri[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return data, nil
}

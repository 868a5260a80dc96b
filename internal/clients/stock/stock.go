// Package stock searches stock footage for scene backgrounds. Results
// are ranked by aspect-ratio closeness to the 9:16 output frame,
// narrowest fit first.
package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/BrainSnack9/shorts-factory/internal/logger"
)

const (
	defaultBaseURL = "https://api.pexels.com"
	perPage        = 5
	cacheTTL       = time.Hour
	searchParallel = 3
)

// Clip is one candidate background video.
type Clip struct {
	ID       int     `json:"id"`
	URL      string  `json:"url"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
}

type BatchItem struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

type BatchResult struct {
	ID      string `json:"id"`
	Results []Clip `json:"results"`
}

type Client struct {
	log     *logger.Logger
	apiKey  string
	baseURL string
	http    *http.Client
	cache   *redis.Client // nil: caching disabled
}

// New builds a search client. A non-empty redisAddr enables the query
// cache; lookups degrade to live searches when redis is down.
func New(log *logger.Logger, apiKey, redisAddr string) *Client {
	c := &Client{
		log:     log.With("component", "stock"),
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	if redisAddr != "" {
		c.cache = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return c
}

var ErrNoAPIKey = errors.New("missing stock search api key")

// pexels wire shapes
type pexelsSearchResponse struct {
	Videos []pexelsVideo `json:"videos"`
}

type pexelsVideo struct {
	ID         int               `json:"id"`
	Duration   float64           `json:"duration"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsVideoFile struct {
	Link   string `json:"link"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Search returns ranked portrait candidates for one query.
func (c *Client) Search(ctx context.Context, query string) ([]Clip, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if clips, ok := c.cached(ctx, query); ok {
		return clips, nil
	}

	u, _ := url.Parse(c.baseURL + "/videos/search")
	q := u.Query()
	q.Set("query", query)
	q.Set("per_page", fmt.Sprintf("%d", perPage))
	q.Set("orientation", "portrait")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stock search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stock search: status %d: %s", resp.StatusCode, body)
	}

	var parsed pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("stock search decode: %w", err)
	}

	clips := Rank(flatten(parsed))
	c.store(ctx, query, clips)
	return clips, nil
}

// SearchBatch resolves every item's query, preserving item order.
// Lookups fan out with bounded parallelism; a failed item yields empty
// results rather than failing the batch.
func (c *Client) SearchBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(searchParallel)
	for i, item := range items {
		g.Go(func() error {
			clips, err := c.Search(ctx, item.Query)
			if err != nil {
				c.log.Warn("stock search failed", "scene", item.ID, "error", err)
			}
			results[i] = BatchResult{ID: item.ID, Results: clips}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// flatten picks each video's best portrait file, falling back to its
// first file when no portrait rendition exists.
func flatten(resp pexelsSearchResponse) []Clip {
	clips := make([]Clip, 0, len(resp.Videos))
	for _, v := range resp.Videos {
		var best *pexelsVideoFile
		for i := range v.VideoFiles {
			f := &v.VideoFiles[i]
			if f.Width >= f.Height || f.Link == "" {
				continue
			}
			if best == nil || f.Width*f.Height < best.Width*best.Height {
				best = f
			}
		}
		if best == nil && len(v.VideoFiles) > 0 {
			best = &v.VideoFiles[0]
		}
		if best == nil || best.Link == "" {
			continue
		}
		clips = append(clips, Clip{
			ID:       v.ID,
			URL:      best.Link,
			Width:    best.Width,
			Height:   best.Height,
			Duration: v.Duration,
		})
	}
	return clips
}

const targetAspect = 9.0 / 16.0

// Rank orders clips by aspect-ratio closeness to 9:16, narrowest fit
// first on ties. The sort is stable so equal clips keep API order.
func Rank(clips []Clip) []Clip {
	ranked := append([]Clip(nil), clips...)
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := aspectDelta(ranked[i]), aspectDelta(ranked[j])
		if di != dj {
			return di < dj
		}
		return ranked[i].Width < ranked[j].Width
	})
	return ranked
}

func aspectDelta(c Clip) float64 {
	if c.Height <= 0 {
		return math.Inf(1)
	}
	return math.Abs(float64(c.Width)/float64(c.Height) - targetAspect)
}

func (c *Client) cached(ctx context.Context, query string) ([]Clip, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("stock cache get failed", "error", err)
		}
		return nil, false
	}
	var clips []Clip
	if err := json.Unmarshal(data, &clips); err != nil {
		return nil, false
	}
	return clips, true
}

func (c *Client) store(ctx context.Context, query string, clips []Clip) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(clips)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(query), data, cacheTTL).Err(); err != nil {
		c.log.Warn("stock cache set failed", "error", err)
	}
}

func cacheKey(query string) string {
	return "broll:" + strings.ToLower(query)
}

// Package appview fetches public profile views from a Bluesky AppView.
// The store only carries what the firehose delivers, and avatars ride
// on CDN URLs that never appear in repo records, so profile hydration
// for rendering goes through the public API instead.
package appview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultHost is Bluesky's unauthenticated AppView.
const DefaultHost = "https://public.api.bsky.app"

// app.bsky.actor.getProfiles accepts at most 25 actors per call.
const batchSize = 25

// Profile is the slice of the AppView profile view the pipeline keeps.
type Profile struct {
	DID         string `json:"did" bson:"did"`
	Handle      string `json:"handle" bson:"handle"`
	DisplayName string `json:"displayName,omitempty" bson:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// Client calls the AppView over plain HTTP. Safe for concurrent use.
type Client struct {
	host   string
	client *http.Client
}

// NewClient returns a client for host, falling back to DefaultHost
// when host is empty.
func NewClient(host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		host: strings.TrimSuffix(host, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetProfiles hydrates dids in batches of 25, batches in flight
// concurrently. DIDs the AppView does not know are absent from the
// result rather than an error.
func (c *Client) GetProfiles(ctx context.Context, dids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(dids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(dids); start += batchSize {
		batch := dids[start:min(start+batchSize, len(dids))]
		g.Go(func() error {
			profiles, err := c.getProfiles(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, p := range profiles {
				out[p.DID] = p
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getProfiles(ctx context.Context, dids []string) ([]Profile, error) {
	u, err := url.Parse(c.host + "/xrpc/app.bsky.actor.getProfiles")
	if err != nil {
		return nil, fmt.Errorf("building appview url: %w", err)
	}
	q := u.Query()
	for _, did := range dids {
		q.Add("actors", did)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building appview request: %w", err)
	}
	req.Header.Set("User-Agent", "wolfgang/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling appview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("appview returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding appview response: %w", err)
	}
	return decoded.Profiles, nil
}

package circles

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"io"
	"net/http"
	"time"

	// register decoders for the formats the CDN serves
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	placeholderSize = 60
	maxAvatarBytes  = 8 << 20
	fetchTimeout    = 5 * time.Second
	fetchWorkers    = 8
)

// Fetcher downloads avatars under a short deadline. Failures and
// absent URLs degrade to the placeholder, so one dead CDN link never
// sinks a whole render.
type Fetcher struct {
	client *http.Client
	log    *log.Entry
}

// NewFetcher builds a Fetcher with its own bounded HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		log:    log.WithField("component", "circles"),
	}
}

// Fetch returns one image per URL, in order.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) []image.Image {
	images := make([]image.Image, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, u := range urls {
		g.Go(func() error {
			images[i] = f.fetchOne(ctx, u)
			return nil
		})
	}
	// workers never return errors, they fall back to the placeholder
	_ = g.Wait()

	return images
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) image.Image {
	if url == "" {
		return Placeholder()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Placeholder()
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.WithError(err).WithField("url", url).Debug("avatar fetch failed")
		return Placeholder()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.log.WithFields(log.Fields{"url": url, "status": resp.StatusCode}).Debug("avatar fetch rejected")
		return Placeholder()
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		f.log.WithError(err).WithField("url", url).Debug("avatar decode failed")
		return Placeholder()
	}
	return img
}

// Placeholder is the white tile with a black X shown when an avatar
// cannot be fetched.
func Placeholder() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for i := 0; i < placeholderSize; i++ {
		img.Set(i, i, color.Black)
		img.Set(placeholderSize-1-i, i, color.Black)
	}
	return img
}

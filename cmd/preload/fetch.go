package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/always-cache/preload"
)

// Summary of a fetched URL and its preloads.
type Summary struct {
	URL    string
	Status int
	Bytes  int
	// Number of preloaded responses, preloads of preloads included.
	Preloads     int
	PreloadBytes int
	// Number of responses that failed or timed out.
	Failed   int
	Err      error
	Duration time.Duration
}

// fetchAll fetches the URLs concurrently, waiting for every preload to complete.
// It fails only for URLs that cannot be requested at all; transport errors are
// reported in the summaries.
func fetchAll(ctx context.Context, client *preload.Client, urls []string, timeout time.Duration, logger zerolog.Logger) ([]Summary, error) {
	summaries := make([]Summary, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	for i, rawURL := range urls {
		g.Go(func() error {
			summary, err := fetch(ctx, client, rawURL, timeout)
			if err != nil {
				return err
			}
			summaries[i] = summary
			event := logger.Info()
			if summary.Err != nil {
				event = logger.Warn().Err(summary.Err)
			}
			event.
				Str("url", summary.URL).
				Int("status", summary.Status).
				Int("bytes", summary.Bytes).
				Int("preload_count", summary.Preloads).
				Int("preload_bytes", summary.PreloadBytes).
				Int("failed", summary.Failed).
				Dur("duration", summary.Duration).
				Msg("Fetched")
			return nil
		})
	}
	return summaries, g.Wait()
}

func fetch(ctx context.Context, client *preload.Client, rawURL string, timeout time.Duration) (Summary, error) {
	start := time.Now()
	res, err := client.Request(ctx, http.MethodGet, rawURL)
	if err != nil {
		return Summary{URL: rawURL}, err
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	responses := collect(waitCtx, res)
	defer client.ClearPreloadedCache(responses...)

	var streamTimeout time.Duration
	if d, ok := waitCtx.Deadline(); ok {
		streamTimeout = max(time.Until(d), time.Nanosecond)
	}

	summary := Summary{URL: res.URL(), Preloads: len(responses) - 1}
	for chunk := range client.Stream(ctx, streamTimeout, responses...) {
		primary := chunk.Response == res
		if chunk.First && primary {
			summary.Status, _ = chunk.Response.StatusCode(ctx)
		}
		if chunk.Err != nil {
			summary.Failed++
			if primary {
				summary.Err = chunk.Err
			}
		}
		if primary {
			summary.Bytes += len(chunk.Data)
		} else {
			summary.PreloadBytes += len(chunk.Data)
		}
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

// collect returns res followed by its preloads, and their preloads, once their headers
// have arrived.
func collect(ctx context.Context, res *preload.Response) []*preload.Response {
	responses := []*preload.Response{res}
	seen := map[*preload.Response]bool{res: true}
	for i := 0; i < len(responses); i++ {
		if err := responses[i].Wait(ctx); err != nil {
			continue
		}
		for _, p := range responses[i].Preloads() {
			if !seen[p] {
				seen[p] = true
				responses = append(responses, p)
			}
		}
	}
	return responses
}

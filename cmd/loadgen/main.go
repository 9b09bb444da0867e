// Command loadgen floods a running podium instance with synthetic score
// events and prints a short summary of the responses.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/domain/types"
)

const (
	defaultNumEvents = 10000
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 30 * time.Second
	defaultRunLimit  = 10 * time.Minute
	defaultEntities  = 500
	defaultMaxScore  = 100000
)

type counters struct {
	accepted   atomic.Int64
	duplicates atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to generate and submit")
		entities  = flag.Int("entities", defaultEntities, "Size of the synthetic entity pool")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		maxScore  = flag.Uint64("max-score", defaultMaxScore, "Upper bound for generated scores")
		dupRate   = flag.Float64("dup-rate", 0.05, "Fraction of events resubmitted with a reused event id")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "RNG seed")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	client := &http.Client{Timeout: *timeout}
	rng := rand.New(rand.NewSource(*seed))

	events := generate(rng, *numEvents, *entities, *maxScore, *dupRate)

	var c counters
	start := time.Now()

	jobs := make(chan map[string]any)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range jobs {
				submit(ctx, client, *baseURL, event, &c)
			}
		}()
	}
	for _, event := range events {
		select {
		case jobs <- event:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			os.Stderr.WriteString("run limit exceeded\n")
			return
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("submitted %d events in %s (%.0f events/s)\n",
		len(events), elapsed.Round(time.Millisecond), float64(len(events))/elapsed.Seconds())
	fmt.Printf("accepted=%d duplicates=%d rejected=%d failed=%d\n",
		c.accepted.Load(), c.duplicates.Load(), c.rejected.Load(), c.failed.Load())
}

// generate builds the event batch up front so duplicate injection can
// reuse earlier event ids.
func generate(rng *rand.Rand, n, entityPool int, maxScore uint64, dupRate float64) []map[string]any {
	categories := types.Categories()
	timeframes := types.Timeframes()

	events := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		if len(events) > 0 && rng.Float64() < dupRate {
			events = append(events, events[rng.Intn(len(events))])
			continue
		}
		events = append(events, map[string]any{
			"event_id":  uuid.NewString(),
			"entity":    fmt.Sprintf("entity-%04d", rng.Intn(entityPool)),
			"category":  categories[rng.Intn(len(categories))].String(),
			"timeframe": timeframes[rng.Intn(len(timeframes))].String(),
			"score":     rng.Uint64() % (maxScore + 1),
			"ts":        time.Now().UTC().Format(time.RFC3339),
		})
	}
	return events
}

func submit(ctx context.Context, client *http.Client, baseURL string, event map[string]any, c *counters) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.failed.Add(1)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/events", bytes.NewReader(payload))
	if err != nil {
		c.failed.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.failed.Add(1)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusAccepted:
		c.accepted.Add(1)
	case http.StatusOK:
		c.duplicates.Add(1)
	case http.StatusTooManyRequests:
		c.rejected.Add(1)
	default:
		c.failed.Add(1)
	}
}

package remote

import (
	"context"
	"sync"
)

// DefaultWorkers bounds the download pool. Downloads are I/O-bound, so the
// bound is independent of (and smaller than) the CPU-sized hashing pool.
const DefaultWorkers = 8

// DownloadJob names one file to fetch and where to put it.
type DownloadJob struct {
	URL      string
	DestPath string
}

// DownloadResult reports the outcome of one job.
type DownloadResult struct {
	DownloadJob
	Error error
}

// FetchMany downloads all jobs through a bounded worker pool and blocks until
// every job has settled. A single failure fails the whole call with a
// BatchDownloadError naming the URL; in-flight work is cancelled and no
// partial success is reported.
func (c *Client) FetchMany(ctx context.Context, jobs []*DownloadJob, workers int) error {
	if len(jobs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan *DownloadJob, len(jobs))
	results := make(chan *DownloadResult, len(jobs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range queue {
				select {
				case <-ctx.Done():
					return
				default:
					_, err := c.Fetch(ctx, job.URL, job.DestPath)
					results <- &DownloadResult{DownloadJob: *job, Error: err}
				}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case queue <- job:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var batchErr error
	for res := range results {
		if res.Error != nil && batchErr == nil {
			batchErr = &BatchDownloadError{URL: res.URL, Err: res.Error}
			cancel()
		}
	}
	return batchErr
}

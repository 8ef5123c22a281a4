package downloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
	"imgchest/pkg/logger"
	"imgchest/pkg/models"
	"imgchest/pkg/retry"
)

// DefaultWorkers is used when a non-positive worker count is given
const DefaultWorkers = 4

// Job is one image of a post to fetch
type Job struct {
	PostID string
	Image  models.Image
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Size     int64
	Skipped  bool
	Err      error
	Duration time.Duration
}

// FileDownloader streams a CDN file into w
type FileDownloader interface {
	DownloadFile(ctx context.Context, link string, w io.Writer) (int64, error)
}

// FileStorage decides what to skip and writes files atomically
type FileStorage interface {
	ShouldSkip(postID string, img models.Image) bool
	Save(postID string, img models.Image, write func(w io.Writer) (int64, error)) (int64, error)
}

// Pool downloads post files with a bounded number of concurrent workers
type Pool struct {
	workers  int
	client   FileDownloader
	storage  FileStorage
	retry    *retry.Config
	timeout  time.Duration
	logger   logger.Logger
	onResult func(Result)
}

// Option configures a Pool
type Option func(*Pool)

// WithRetry retries transient download failures
func WithRetry(cfg *retry.Config) Option {
	return func(p *Pool) { p.retry = cfg }
}

// WithTimeout bounds each attempt at a single file
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) { p.timeout = d }
}

// WithLogger injects a logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress is called once per finished job, from the worker goroutine
func WithProgress(fn func(Result)) Option {
	return func(p *Pool) { p.onResult = fn }
}

// NewPool creates a pool
func NewPool(workers int, client FileDownloader, storage FileStorage, opts ...Option) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{
		workers: workers,
		client:  client,
		storage: storage,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the concurrency limit
func (p *Pool) Workers() int { return p.workers }

// Download runs every job and returns results in job order.
// A failed file is reported in its Result and does not stop the others;
// the returned error is non-nil only when ctx ends first.
func (p *Pool) Download(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	p.logger.DebugWithFields("Starting downloads", map[string]interface{}{
		"jobs":    len(jobs),
		"workers": p.workers,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, job := range jobs {
		i, job := i, job // per-iteration copies (go.mod targets go1.21)
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := p.process(gctx, job)
			results[i] = res
			if p.onResult != nil {
				p.onResult(res)
			}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Pool) process(ctx context.Context, job Job) Result {
	start := time.Now()
	res := Result{Job: job}

	if p.storage.ShouldSkip(job.PostID, job.Image) {
		res.Skipped = true
		res.Duration = time.Since(start)
		logger.LogDownload(p.logger, job.PostID, job.Image.ID, 0, true, nil)
		return res
	}

	link := job.Image.Link
	if job.Image.VideoLink != "" {
		link = job.Image.VideoLink
	}

	attempt := func(ctx context.Context) error {
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		n, err := p.storage.Save(job.PostID, job.Image, func(w io.Writer) (int64, error) {
			return p.client.DownloadFile(ctx, link, w)
		})
		res.Size = n
		return err
	}

	var err error
	if p.retry != nil {
		err = retry.Do(ctx, p.retry, attempt)
	} else {
		err = attempt(ctx)
	}
	if err != nil {
		res.Err = fmt.Errorf("download %s: %w", job.Image.ID, err)
		res.Size = 0
	}

	res.Duration = time.Since(start)
	logger.LogDownload(p.logger, job.PostID, job.Image.ID, res.Size, false, res.Err)
	return res
}

// JobsForPost lists one job per image of post
func JobsForPost(post *models.Post) []Job {
	jobs := make([]Job, 0, len(post.Images))
	for _, img := range post.Images {
		jobs = append(jobs, Job{PostID: post.ID, Image: img})
	}
	return jobs
}

// Summary counts results
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Summarize tallies results
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Skipped:
			s.Skipped++
		case r.Job.PostID != "":
			s.Downloaded++
			s.Bytes += r.Size
		}
	}
	return s
}

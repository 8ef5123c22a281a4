package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"imgchest/internal/downloader"
	"imgchest/pkg/config"
	"imgchest/pkg/imgchest"
	"imgchest/pkg/logger"
	"imgchest/pkg/metadata"
	"imgchest/pkg/models"
	"imgchest/pkg/retry"
	"imgchest/pkg/storage"
)

// maxParallelPosts bounds how many posts are assembled at once; files inside a post have their own pool
const maxParallelPosts = 2

var (
	outputDir  string
	concurrent int
	overwrite  bool
	noMetadata bool
	maxPages   int
)

var downloadCmd = &cobra.Command{
	Use:   "download <url|id>...",
	Short: "Download every file of one or more public posts",
	Long: `Download every file of one or more public imgchest posts.

Posts are read from their public page, so no token is needed. Posts that
show only part of their images are completed through the "load all" request.
Each post is saved under <output>/<post id>/ together with a post.json
describing it. Files that already exist are skipped unless --overwrite is set.`,
	Example: `  # Download a post by id
  imgchest download 3qe4gdvj9j8

  # Download several posts into a specific directory
  imgchest download https://imgchest.com/p/3qe4gdvj9j8 nw7w6cmlvye -o ./posts

  # Use more workers per post
  imgchest download 3qe4gdvj9j8 --concurrent 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads (default: current directory)")
	downloadCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent file downloads per post")
	downloadCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace files that already exist")
	downloadCmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "do not write post.json")
	downloadCmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum follow-up requests per post")
}

func runDownload(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"output":     outputDir,
		"concurrent": concurrent,
		"overwrite":  overwrite,
		"max-pages":  maxPages,
	}
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if noMetadata {
		cfg.Download.WriteMetadata = false
	}

	store, err := storage.NewManager(cfg.Download.OutputDirectory, cfg.Download.OverwriteExisting)
	if err != nil {
		return err
	}

	d := &postDownloader{
		client: imgchest.NewClientWithConfig(cfg, log),
		store:  store,
		cfg:    cfg,
		retry:  retry.FromConfig(cfg.Retry, log),
		logger: log,
		out:    cmd.OutOrStdout(),
	}
	return d.run(cmd.Context(), args)
}

// postDownloader assembles scraped posts and hands their files to a download pool
type postDownloader struct {
	client *imgchest.Client
	store  *storage.Manager
	cfg    *config.Config
	retry  *retry.Config
	logger logger.Logger
	out    io.Writer
}

type postReport struct {
	ref     string
	post    *models.Post
	summary downloader.Summary
	err     error
}

// run downloads every ref. One failed post does not stop the others.
func (d *postDownloader) run(ctx context.Context, refs []string) error {
	reports := make([]postReport, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPosts)

	for i, ref := range refs {
		i, ref := i, ref // per-iteration copies (go.mod targets go1.21)
		g.Go(func() error {
			reports[i] = d.downloadPost(gctx, strings.TrimSpace(ref))
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	var total downloader.Summary
	for _, r := range reports {
		if r.err != nil {
			fmt.Fprintf(d.out, "%s: failed: %v\n", r.ref, r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.ref, r.err))
			continue
		}
		fmt.Fprintf(d.out, "%s: %q by %s, %d downloaded, %d skipped, %d failed\n",
			r.post.ID, r.post.Title, r.post.Username, r.summary.Downloaded, r.summary.Skipped, r.summary.Failed)
		total.Downloaded += r.summary.Downloaded
		total.Skipped += r.summary.Skipped
		total.Failed += r.summary.Failed
		total.Bytes += r.summary.Bytes
		if r.summary.Failed > 0 {
			errs = append(errs, fmt.Errorf("%s: %d files failed", r.post.ID, r.summary.Failed))
		}
	}

	d.logger.InfoWithFields("Download finished", map[string]interface{}{
		"posts":      len(refs),
		"downloaded": total.Downloaded,
		"skipped":    total.Skipped,
		"failed":     total.Failed,
		"bytes":      total.Bytes,
	})

	if err := ctx.Err(); err != nil {
		return err
	}
	return stderrors.Join(errs...)
}

func (d *postDownloader) downloadPost(ctx context.Context, ref string) postReport {
	report := postReport{ref: ref}
	log := d.logger.WithField("post", ref)

	post, err := retry.DoWithResult(ctx, d.retry, func(ctx context.Context) (*models.Post, error) {
		return d.client.GetScrapedPost(ctx, ref)
	})
	if err != nil {
		report.err = err
		return report
	}
	report.post = post
	log.WithField("images", len(post.Images)).Info("Post assembled")

	pool := downloader.NewPool(d.cfg.Download.ConcurrentDownloads, d.client, d.store,
		downloader.WithRetry(d.retry),
		downloader.WithTimeout(d.cfg.Download.DownloadTimeout),
		downloader.WithLogger(log),
	)

	start := time.Now()
	results, err := pool.Download(ctx, downloader.JobsForPost(post))
	report.summary = downloader.Summarize(results)
	if err != nil {
		report.err = err
		return report
	}

	for _, r := range results {
		if r.Err != nil {
			log.WithError(r.Err).Warn("File failed")
		}
	}

	if d.cfg.Download.WriteMetadata {
		if err := d.writeMetadata(post, results); err != nil {
			report.err = err
			return report
		}
	}

	log.WithField("duration", time.Since(start).String()).Debug("Post downloaded")
	return report
}

func (d *postDownloader) writeMetadata(post *models.Post, results []downloader.Result) error {
	meta := metadata.FromPost(post, imgchest.PostPageURL(d.cfg.API.SiteURL, post.ID), storage.FileName)
	for _, r := range results {
		if r.Err == nil {
			meta.Record(r.Job.Image.ID, r.Size, r.Skipped)
		}
	}

	data, err := meta.Marshal()
	if err != nil {
		return err
	}
	if _, err := d.store.WriteFile(post.ID, metadata.FileName, data); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/logger"
	"imgchest/pkg/models"
	"imgchest/pkg/retry"
)

type mockClient struct {
	delay    time.Duration
	failures map[string]int
	mu       sync.Mutex
	calls    atomic.Int32
	active   atomic.Int32
	peak     atomic.Int32
}

func (m *mockClient) DownloadFile(ctx context.Context, link string, w io.Writer) (int64, error) {
	m.calls.Add(1)
	now := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		old := m.peak.Load()
		if now <= old || m.peak.CompareAndSwap(old, now) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	m.mu.Lock()
	remaining := m.failures[link]
	if remaining > 0 {
		m.failures[link] = remaining - 1
	}
	m.mu.Unlock()
	if remaining > 0 {
		return 0, &apperrors.TransportError{Op: apperrors.OpNetwork, URL: link, Err: errors.New("reset")}
	}

	n, err := io.WriteString(w, "data:"+link)
	return int64(n), err
}

type mockStorage struct {
	mu       sync.Mutex
	existing map[string]bool
	saved    map[string]string
}

func newMockStorage() *mockStorage {
	return &mockStorage{existing: map[string]bool{}, saved: map[string]string{}}
}

func (m *mockStorage) ShouldSkip(postID string, img models.Image) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing[img.ID]
}

func (m *mockStorage) Save(postID string, img models.Image, write func(w io.Writer) (int64, error)) (int64, error) {
	var buf writerBuffer
	n, err := write(&buf)
	if err != nil {
		return n, err
	}
	m.mu.Lock()
	m.saved[img.ID] = buf.String()
	m.mu.Unlock()
	return n, nil
}

type writerBuffer struct{ b []byte }

func (w *writerBuffer) Write(p []byte) (int, error) { w.b = append(w.b, p...); return len(p), nil }
func (w *writerBuffer) String() string              { return string(w.b) }

func makePost(n int) *models.Post {
	post := &models.Post{ID: "post1"}
	for i := 1; i <= n; i++ {
		post.Images = append(post.Images, models.Image{
			ID:       fmt.Sprintf("f%d", i),
			Link:     fmt.Sprintf("https://cdn.imgchest.com/files/f%d.png", i),
			Position: i,
		})
	}
	return post
}

func TestPool_DownloadsAllInOrder(t *testing.T) {
	client := &mockClient{delay: 5 * time.Millisecond}
	storage := newMockStorage()
	pool := NewPool(3, client, storage)

	results, err := pool.Download(context.Background(), JobsForPost(makePost(10)))
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("f%d", i+1), r.Job.Image.ID)
		assert.NoError(t, r.Err)
		assert.Positive(t, r.Size)
	}
	assert.Len(t, storage.saved, 10)
	assert.LessOrEqual(t, client.peak.Load(), int32(3))

	summary := Summarize(results)
	assert.Equal(t, 10, summary.Downloaded)
	assert.Equal(t, 0, summary.Failed)
}

func TestPool_SkipsExisting(t *testing.T) {
	client := &mockClient{}
	storage := newMockStorage()
	storage.existing["f2"] = true
	progress := atomic.Int32{}

	pool := NewPool(2, client, storage, WithProgress(func(Result) { progress.Add(1) }))
	results, err := pool.Download(context.Background(), JobsForPost(makePost(3)))
	require.NoError(t, err)

	assert.True(t, results[1].Skipped)
	assert.Equal(t, int32(2), client.calls.Load())
	assert.Equal(t, int32(3), progress.Load())
	assert.Equal(t, 1, Summarize(results).Skipped)
}

func TestPool_PrefersVideoLink(t *testing.T) {
	client := &mockClient{}
	storage := newMockStorage()
	post := &models.Post{ID: "p", Images: []models.Image{{
		ID: "v", Link: "https://cdn.imgchest.com/files/v.jpg", VideoLink: "https://cdn.imgchest.com/files/v.mp4", Position: 1,
	}}}

	_, err := NewPool(1, client, storage).Download(context.Background(), JobsForPost(post))
	require.NoError(t, err)
	assert.Equal(t, "data:https://cdn.imgchest.com/files/v.mp4", storage.saved["v"])
}

func TestPool_FailureDoesNotStopOthers(t *testing.T) {
	client := &mockClient{failures: map[string]int{"https://cdn.imgchest.com/files/f2.png": 99}}
	storage := newMockStorage()
	tl := logger.NewTestLogger()

	results, err := NewPool(2, client, storage, WithLogger(tl)).Download(context.Background(), JobsForPost(makePost(3)))
	require.NoError(t, err)

	require.Error(t, results[1].Err)
	assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(results[1].Err))
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 1, Summarize(results).Failed)
	assert.True(t, tl.HasMessage("Download failed"))
}

func TestPool_RetriesTransientFailures(t *testing.T) {
	client := &mockClient{failures: map[string]int{"https://cdn.imgchest.com/files/f1.png": 2}}
	storage := newMockStorage()
	cfg := &retry.Config{MaxAttempts: 3, Backoff: &retry.ConstantBackoff{Delay: time.Millisecond}}

	results, err := NewPool(1, client, storage, WithRetry(cfg)).Download(context.Background(), JobsForPost(makePost(1)))
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int32(3), client.calls.Load())
}

func TestPool_Cancelled(t *testing.T) {
	client := &mockClient{delay: time.Second}
	storage := newMockStorage()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewPool(2, client, storage).Download(ctx, JobsForPost(makePost(6)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, storage.saved)
}

func TestNewPool_DefaultWorkers(t *testing.T) {
	assert.Equal(t, DefaultWorkers, NewPool(0, &mockClient{}, newMockStorage()).Workers())
}

func TestPool_TimeoutBoundsEachFile(t *testing.T) {
	client := &mockClient{delay: time.Second}
	storage := newMockStorage()

	start := time.Now()
	results, err := NewPool(2, client, storage, WithTimeout(20*time.Millisecond)).Download(context.Background(), JobsForPost(makePost(2)))
	require.NoError(t, err, "a per-file timeout is not a pool failure")
	assert.Less(t, time.Since(start), time.Second)

	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	}
	assert.Equal(t, 2, Summarize(results).Failed)
}

package assembler

import (
	"context"
	"fmt"

	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/logger"
	"imgchest/pkg/models"
)

// DefaultMaxPages bounds follow-up fetches for a single post
const DefaultMaxPages = 10

// Source is one retrieval mechanism for posts
type Source interface {
	Mode() models.Mode
	FetchFirstPage(ctx context.Context, ref string) (*models.Post, *models.ContinuationToken, error)
	FetchNextPage(ctx context.Context, token *models.ContinuationToken) (*models.Post, *models.ContinuationToken, error)
}

// State is the assembly state of a post
type State int

const (
	StateInitial State = iota
	StatePartiallyLoaded
	StateFullyLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePartiallyLoaded:
		return "partially_loaded"
	case StateFullyLoaded:
		return "fully_loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Assembler drives a Source until a post is complete
type Assembler struct {
	maxPages int
	logger   logger.Logger
}

// Option configures an Assembler
type Option func(*Assembler)

// WithMaxPages sets the follow-up cap; non-positive values keep the default
func WithMaxPages(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxPages = n
		}
	}
}

// WithLogger receives state transitions at debug level
func WithLogger(l logger.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Assembler
func New(opts ...Option) *Assembler {
	a := &Assembler{
		maxPages: DefaultMaxPages,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxPages returns the follow-up cap
func (a *Assembler) MaxPages() int { return a.maxPages }

// Assemble fetches the first page of ref and every follow-up page.
// It returns a fully loaded post or an error, never a partial post.
func (a *Assembler) Assemble(ctx context.Context, src Source, ref string) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx = logger.ContextWithPost(ctx, ref, src.Mode().String())
	post, token, err := src.FetchFirstPage(ctx, ref)
	if err != nil {
		a.transition(ref, StateFailed, 0, 0)
		return nil, err
	}

	if err := checkDense(post.Images, 0); err != nil {
		a.transition(post.ID, StateFailed, 0, len(post.Images))
		return nil, err
	}

	return a.Continue(ctx, src, post, token)
}

// Continue completes post starting from token. A nil token finalizes post as is.
func (a *Assembler) Continue(ctx context.Context, src Source, post *models.Post, token *models.ContinuationToken) (*models.Post, error) {
	if _, _, ok := logger.PostFromContext(ctx); !ok {
		ctx = logger.ContextWithPost(ctx, post.ID, src.Mode().String())
	}

	pages := 0
	for token != nil {
		a.transition(post.ID, StatePartiallyLoaded, pages, len(post.Images))

		if token.Mode != src.Mode() {
			a.transition(post.ID, StateFailed, pages, len(post.Images))
			return nil, &apperrors.AssemblyError{
				Reason:   apperrors.AssemblyModeMismatch,
				Expected: src.Mode().String(),
				Got:      token.Mode.String(),
			}
		}

		if pages >= a.maxPages {
			a.transition(post.ID, StateFailed, pages, len(post.Images))
			return nil, &apperrors.AssemblyError{Reason: apperrors.AssemblyTooManyPages, Limit: a.maxPages}
		}

		if err := ctx.Err(); err != nil {
			a.transition(post.ID, StateFailed, pages, len(post.Images))
			return nil, err
		}

		page, next, err := src.FetchNextPage(ctx, token)
		pages++
		if err != nil {
			a.transition(post.ID, StateFailed, pages, len(post.Images))
			return nil, err
		}

		if err := Merge(post, page, token.Offset); err != nil {
			a.transition(post.ID, StateFailed, pages, len(post.Images))
			return nil, err
		}
		token = next
	}

	if post.ImageCount > 0 && post.ImageCount != len(post.Images) {
		a.transition(post.ID, StateFailed, pages, len(post.Images))
		return nil, &apperrors.MergeError{
			Reason:   apperrors.MergeInconsistent,
			Expected: post.ImageCount,
			Got:      len(post.Images),
			Detail:   "declared image count differs from assembled images",
		}
	}

	post.FullyLoaded = true
	a.transition(post.ID, StateFullyLoaded, pages, len(post.Images))
	return post, nil
}

// Merge appends the images of page to post. offset must equal the images already
// held and page positions must continue densely from it.
func Merge(post, page *models.Post, offset int) error {
	if offset != len(post.Images) {
		return &apperrors.MergeError{
			Reason:   apperrors.MergeInconsistent,
			Expected: len(post.Images),
			Got:      offset,
			Detail:   "continuation offset does not match held images",
		}
	}
	if err := checkDense(page.Images, offset); err != nil {
		return err
	}
	post.Images = append(post.Images, page.Images...)
	return nil
}

// checkDense verifies positions are offset+1, offset+2, ...
func checkDense(images []models.Image, offset int) error {
	for i, img := range images {
		want := offset + i + 1
		if img.Position == want {
			continue
		}
		detail := "gap in image positions"
		if img.Position < want {
			detail = "overlapping image positions"
		}
		return &apperrors.MergeError{
			Reason:   apperrors.MergeInconsistent,
			Expected: want,
			Got:      img.Position,
			Detail:   detail,
		}
	}
	return nil
}

func (a *Assembler) transition(postID string, state State, pages, images int) {
	logger.LogAssembly(a.logger, postID, state.String(), pages, images)
}

package ruleset

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/model"
	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/rules"
)

const DefaultConcurrency = 8

// Fetcher returns the text of a remote rule list.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type FetcherFunc func(ctx context.Context, rawURL string) (string, error)

func (f FetcherFunc) FetchText(ctx context.Context, rawURL string) (string, error) {
	return f(ctx, rawURL)
}

// HTTPFetcher fetches rule lists directly over HTTP.
func HTTPFetcher(opt fetch.Options) Fetcher {
	return FetcherFunc(func(ctx context.Context, rawURL string) (string, error) {
		return fetch.FetchTextWithOptions(ctx, fetch.KindRuleset, rawURL, opt)
	})
}

// Cache is the subset of the fetch cache Expand needs.
type Cache interface {
	GetOrPut(ctx context.Context, key string, supply func(context.Context) (string, error)) (string, error)
}

// CachedFetcher serves rule lists from c, falling back to next on a miss.
func CachedFetcher(c Cache, next Fetcher) Fetcher {
	return FetcherFunc(func(ctx context.Context, rawURL string) (string, error) {
		return c.GetOrPut(ctx, rawURL, func(ctx context.Context) (string, error) {
			return next.FetchText(ctx, rawURL)
		})
	})
}

type Options struct {
	Concurrency int // default DefaultConcurrency
}

type ExpandError struct {
	AppError model.AppError
	Cause    error
}

func (e *ExpandError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ExpandError) Unwrap() error { return e.Cause }

// Expand fetches every registered rule list concurrently and returns their
// rules tagged with the owning group. Output follows registration order
// regardless of which download finishes first. The first failure cancels the
// remaining downloads.
func Expand(ctx context.Context, spec *profile.Spec, f Fetcher, opt Options) ([]string, error) {
	entries := Entries(spec)
	if len(entries) == 0 {
		return []string{}, nil
	}

	limit := opt.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	start := time.Now()
	results := make([][]string, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			text, err := f.FetchText(gctx, e.URL)
			if err != nil {
				return &ExpandError{
					AppError: model.AppError{
						Code:    "RULESET_FETCH_ERROR",
						Message: fmt.Sprintf("下载规则集失败：%s", e.Group),
						Stage:   "expand_ruleset",
						URL:     e.URL,
					},
					Cause: err,
				}
			}
			lines, err := rules.TagRulesetText(e.URL, text, e.Group)
			if err != nil {
				return err
			}
			results[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, r := range results {
		n += len(r)
	}
	out := make([]string, 0, n)
	for _, r := range results {
		out = append(out, r...)
	}

	logrus.WithFields(logrus.Fields{
		"rulesets": len(entries),
		"rules":    len(out),
		"elapsed":  time.Since(start),
	}).Info("rulesets expanded")
	return out, nil
}

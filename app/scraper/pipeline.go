package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/jobradar/app/job"
)

// Request identifies one item to fetch: the external record ID and the URL
// of its detail page.
type Request struct {
	ID  string
	URL string
}

// Result pairs a request with its outcome. Exactly one of Record and Err is
// set.
type Result struct {
	ID     string
	Record *job.Record
	Err    error
}

// Pipeline is a bounded-concurrency fetch executor. Two independent
// instances exist: one for primary ingestion and a narrower one for
// enrichment, each with its own ceiling so a slow enrichment backlog cannot
// starve primary ingestion.
type Pipeline struct {
	client    *Client
	governor  *Governor
	extractor Extractor
	limit     int
}

func NewPipeline(client *Client, governor *Governor, extractor Extractor, limit int) *Pipeline {
	if limit <= 0 {
		limit = 1
	}
	return &Pipeline{
		client:    client,
		governor:  governor,
		extractor: extractor,
		limit:     limit,
	}
}

// FetchBatch fetches every request with at most the pipeline's limit in
// flight and returns one result per request, in input order. Per-item
// failures are captured as typed FetchErrors; one bad item never blocks or
// fails its siblings. There is no in-batch retry: retry is the scheduler's
// responsibility on the next cadence tick.
func (p *Pipeline) FetchBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(p.limit)

	for i, req := range reqs {
		g.Go(func() error {
			results[i] = p.fetchOne(ctx, req)
			return nil
		})
	}

	// Workers never return errors; failures live in the results.
	_ = g.Wait()

	return results
}

// FetchSearch fetches one search results page and extracts its summaries.
func (p *Pipeline) FetchSearch(ctx context.Context, searchURL string) ([]job.Summary, error) {
	body, err := p.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	summaries, err := p.extractor.ExtractSearch(body)
	if err != nil {
		return nil, &FetchError{Kind: Malformed, URL: searchURL, Err: err}
	}

	return summaries, nil
}

// FetchCompany fetches a company page and extracts its enrichment metadata.
func (p *Pipeline) FetchCompany(ctx context.Context, companyURL, companyName string) (*job.Company, error) {
	body, err := p.fetch(ctx, companyURL)
	if err != nil {
		return nil, err
	}

	company, err := p.extractor.ExtractCompany(body, companyName)
	if err != nil {
		return nil, &FetchError{Kind: Malformed, URL: companyURL, Err: err}
	}

	return company, nil
}

func (p *Pipeline) fetchOne(ctx context.Context, req Request) Result {
	body, err := p.fetch(ctx, req.URL)
	if err != nil {
		return Result{ID: req.ID, Err: err}
	}

	record, err := p.extractor.ExtractDetail(body, req.ID)
	if err != nil {
		slog.Debug("Extraction failed", "id", req.ID, "url", req.URL, "error", err)
		return Result{ID: req.ID, Err: &FetchError{Kind: Malformed, URL: req.URL, Err: err}}
	}

	return Result{ID: req.ID, Record: record}
}

// fetch performs one governed request and classifies the outcome.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target := targetOf(rawURL)

	if err := p.governor.Acquire(ctx, target); err != nil {
		return nil, &FetchError{Kind: Transient, URL: rawURL, Err: err}
	}
	defer p.governor.Release(target)

	resp, err := p.client.Get(ctx, rawURL)
	if err != nil {
		return nil, &FetchError{Kind: Transient, URL: rawURL, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		p.governor.ReportThrottle(target)
		return nil, &FetchError{Kind: Transient, URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		p.governor.ReportSuccess(target)
		return nil, &FetchError{Kind: NotFound, URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{Kind: Transient, URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	p.governor.ReportSuccess(target)

	return resp.Body, nil
}

// targetOf maps a URL to its governor target (the host).
func targetOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

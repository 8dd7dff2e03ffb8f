package analyze

import (
	"context"
	"encoding/json"
	"fmt"

	"desktour/internal/config"
	"desktour/internal/core/describe"
	"desktour/internal/core/extract"
	"desktour/internal/core/job"
	"desktour/internal/core/match"
	"desktour/internal/logger"
	tasks "desktour/internal/platform/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ASINLookup batch-resolves marketplace product pages by ASIN. Only the
// amazon client implements it; with rakuten as the marketplace the linked
// ASINs are carried through without product data.
type ASINLookup interface {
	Lookup(ctx context.Context, asins []string) map[string]*match.ProductInfo
}

type Service struct {
	job      *job.JobService
	tasks    *tasks.Client
	extract  *extract.Service
	describe *describe.Service
	lookup   ASINLookup
	match    *match.Reconciler
	log      *logger.Logger
	config   config.Config
}

func NewService(jobSvc *job.JobService, tasksCli *tasks.Client, extractSvc *extract.Service, describeSvc *describe.Service, lookup ASINLookup, reconciler *match.Reconciler, cfg config.Config) *Service {
	return &Service{
		job:      jobSvc,
		tasks:    tasksCli,
		extract:  extractSvc,
		describe: describeSvc,
		lookup:   lookup,
		match:    reconciler,
		log:      logger.New("AnalyzeService"),
		config:   cfg,
	}
}

// Request is one source to analyze. Content (transcript or article body) is
// optional; when absent the page is fetched. Description carries the
// link-bearing text of video sources, which is mined separately from the
// content the LLM reads.
type Request struct {
	URL         string `json:"source_url"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
}

type TaskPayload struct {
	JobID   string  `json:"job_id"`
	Request Request `json:"request"`
}

func (s *Service) Enqueue(ctx context.Context, req Request) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("url is required")
	}
	id := uuid.New().String()

	payload, _ := json.Marshal(TaskPayload{JobID: id, Request: req})
	if err := s.job.InitPending(ctx, id, req.URL); err != nil {
		return "", err
	}
	task := asynq.NewTask(tasks.TaskTypeAnalyze, payload)
	if err := s.tasks.Enqueue(task, "default", s.config.TaskMaxRetries); err != nil {
		return "", err
	}
	s.log.LogInfof("enqueued analyze job %s for %s", id, req.URL)
	return id, nil
}

func (s *Service) HandleAnalyzeTask(ctx context.Context, task *asynq.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return err
	}
	s.log.LogInfof("processing analyze job %s for %s", p.JobID, p.Request.URL)
	if err := s.job.SetProcessing(ctx, p.JobID); err != nil {
		return err
	}

	result, err := s.Run(ctx, p.Request)
	if err != nil {
		s.log.LogErrorf("analyze job %s failed: %v", p.JobID, err)
		failed := &job.AnalyzeResult{SourceURL: p.Request.URL, Error: err.Error()}
		if result != nil {
			failed.TokenUsage = result.TokenUsage
		}
		if storeErr := s.job.Complete(ctx, p.JobID, job.StatusFailed, failed); storeErr != nil {
			return storeErr
		}
		// Extraction failures are not retryable input; surface the error once.
		return err
	}

	s.log.LogSuccessf("analyze job %s done: matched %d/%d", p.JobID, result.Matched, result.Total)
	return s.job.Complete(ctx, p.JobID, job.StatusCompleted, result)
}

// Run executes the whole pipeline synchronously: fetch, extract, mine links,
// resolve linked ASINs, reconcile.
func (s *Service) Run(ctx context.Context, req Request) (*job.AnalyzeResult, error) {
	html := req.Content
	if html == "" {
		fetched, err := s.describe.FetchPage(req.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch source: %w", err)
		}
		html = fetched
	}

	products, tokenUsage, err := s.extract.ExtractProducts(ctx, req.URL, html)
	if err != nil {
		return &job.AnalyzeResult{SourceURL: req.URL, TokenUsage: tokenUsage}, fmt.Errorf("extract: %w", err)
	}
	if len(products) == 0 {
		return &job.AnalyzeResult{SourceURL: req.URL, TokenUsage: tokenUsage}, nil
	}

	linkSource := html
	if req.Description != "" {
		linkSource = req.Description
	}
	links, shortLinks := s.describe.CollectLinks(linkSource, req.URL)
	asins := links.ASINs
	if len(shortLinks) > 0 {
		asins = append(asins, s.describe.ResolveShortLinks(ctx, shortLinks)...)
	}
	official := links.Official
	// Link-heavy descriptions get an LLM pass before we fetch any pages.
	if len(official) > 5 {
		urls := make([]string, len(official))
		for i, o := range official {
			urls[i] = o.URL
		}
		if verdicts, err := s.extract.TriageLinks(ctx, urls); err != nil {
			s.log.LogWarnf("link triage failed, keeping heuristic set: %v", err)
		} else {
			kept := official[:0]
			for _, o := range official {
				if verdicts[o.URL] {
					kept = append(kept, o)
				}
			}
			official = kept
		}
	}
	official = s.describe.FetchOfficialTitles(ctx, official)
	products = describe.AttachOfficialInfo(products, official)

	lookups := s.resolveASINs(ctx, asins)

	matched := s.match.Reconcile(ctx, match.Input{Products: products, Lookups: lookups})

	result := &job.AnalyzeResult{
		SourceURL:  req.URL,
		Products:   matched,
		Total:      len(matched),
		TokenUsage: tokenUsage,
	}
	for _, m := range matched {
		if m.Amazon != nil || m.IsExisting {
			result.Matched++
		}
	}
	return result, nil
}

func (s *Service) resolveASINs(ctx context.Context, asins []string) map[string]*match.ProductInfo {
	if len(asins) == 0 {
		return nil
	}
	if s.lookup == nil {
		// No batch-lookup marketplace configured; keep the ASINs as
		// link-only candidates.
		lookups := make(map[string]*match.ProductInfo, len(asins))
		for _, asin := range asins {
			lookups[asin] = nil
		}
		return lookups
	}
	return s.lookup.Lookup(ctx, asins)
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/filter"
	"github.com/salescout/discovery/internal/importer"
	"github.com/salescout/discovery/internal/intent"
	"github.com/salescout/discovery/internal/metrics"
	"github.com/salescout/discovery/internal/ranking"
	"github.com/salescout/discovery/internal/search"
)

// maxInputLen caps the raw request text before any model call.
const maxInputLen = 2000

// maxCrawledSummary bounds the crawled-products summary embedded in failure
// payloads.
const maxCrawledSummary = 20

// Collaborator contracts, satisfied by the concrete stage implementations and
// by test stubs.
type (
	// IntentParser extracts structured search intent from the raw request.
	IntentParser interface {
		Parse(ctx context.Context, userText string, project discovery.Project) (intent.ParsedIntent, error)
	}

	// CriteriaExtractor turns free-text constraints into filter criteria.
	CriteriaExtractor interface {
		Extract(ctx context.Context, filterText string) (*discovery.FilterCriteria, error)
	}

	// CriteriaValidator cross-checks extracted criteria against the text.
	CriteriaValidator interface {
		Validate(ctx context.Context, filterText string, criteria *discovery.FilterCriteria) (bool, string)
	}

	// Searcher names candidate products and attaches search URLs.
	Searcher interface {
		Search(ctx context.Context, query, description string, budget *float64, limit int, platform string) (search.Result, error)
	}

	// Crawler collects listings from candidate search URLs.
	Crawler interface {
		Crawl(ctx context.Context, candidates []discovery.CandidateProduct, progress func(urlsDone, urlsTotal, collected int)) ([]discovery.ScrapedListing, error)
	}

	// Ranker narrows listings to the requested count.
	Ranker interface {
		Rank(ctx context.Context, query string, listings []discovery.ScrapedListing, maxProducts int) ranking.Result
	}

	// ProductImporter persists listings with dedup.
	ProductImporter interface {
		Import(ctx context.Context, projectID, userID uuid.UUID, listings []discovery.ScrapedListing) (importer.Outcome, error)
	}
)

// Config holds the orchestrator's platform policy.
type Config struct {
	// ExcludedPlatforms cannot be crawled; requests scoped to them fail fast.
	ExcludedPlatforms []string
	// CompletionTopic receives the terminal notification of every run.
	CompletionTopic string
}

// Deps wires the orchestrator's collaborators. Projects, Parser, Extractor,
// Validator, Searcher, Crawler, Ranker, and Importer are required; Notifier,
// Artifacts, Metrics, Clock, and Logger default to no-ops when nil.
type Deps struct {
	Projects  discovery.ProjectStore
	Parser    IntentParser
	Extractor CriteriaExtractor
	Validator CriteriaValidator
	Searcher  Searcher
	Crawler   Crawler
	Ranker    Ranker
	Importer  ProductImporter
	Notifier  discovery.Publisher
	Artifacts discovery.ArtifactStore
	Metrics   *metrics.Metrics
	Clock     discovery.Clock
	Logger    *zap.Logger
}

// Orchestrator drives one discovery run through its stages, emitting progress
// events along the way. Cancellation is cooperative: the context is checked
// at stage boundaries, and a consumer disconnect does not cancel the run.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// NewOrchestrator validates deps and builds the orchestrator.
func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Projects == nil:
		return nil, fmt.Errorf("project store is required")
	case deps.Parser == nil:
		return nil, fmt.Errorf("intent parser is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("criteria extractor is required")
	case deps.Validator == nil:
		return nil, fmt.Errorf("criteria validator is required")
	case deps.Searcher == nil:
		return nil, fmt.Errorf("searcher is required")
	case deps.Crawler == nil:
		return nil, fmt.Errorf("crawler is required")
	case deps.Ranker == nil:
		return nil, fmt.Errorf("ranker is required")
	case deps.Importer == nil:
		return nil, fmt.Errorf("importer is required")
	}
	if deps.Clock == nil {
		deps.Clock = discovery.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.CompletionTopic == "" {
		cfg.CompletionTopic = "discovery-runs"
	}
	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// Start launches a run on bridge's producer goroutine and returns immediately.
func (o *Orchestrator) Start(ctx context.Context, bridge *StreamBridge, projectID, userID uuid.UUID, userText string) {
	bridge.RunProducer(o.deps.Clock, o.deps.Logger, func(emit *Emitter) {
		o.Run(ctx, emit, projectID, userID, userText)
	})
}

// Run executes the full pipeline synchronously, emitting events through emit.
// Every run ends with exactly one terminal event: final_result on success,
// step_error on failure, both carrying the returned result.
func (o *Orchestrator) Run(ctx context.Context, emit *Emitter, projectID, userID uuid.UUID, userText string) discovery.RunResult {
	runStart := o.deps.Clock.Now()
	log := o.deps.Logger.With(
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()),
	)

	result := o.run(ctx, emit, log, projectID, userID, userText)

	if result.Status == discovery.RunSuccess {
		emit.FinalResult(result)
	}
	o.deps.Metrics.CountRun(string(result.Status))
	o.finishRun(projectID, result, runStart, log)
	return result
}

func (o *Orchestrator) run(ctx context.Context, emit *Emitter, log *zap.Logger, projectID, userID uuid.UUID, userText string) discovery.RunResult {
	// Step 0: input and project validation, no external model calls yet.
	emit.StepStart(StepValidate, "validate", "Validating request")
	project, res := o.validate(ctx, projectID, userText)
	if res != nil {
		emit.StepFailed(StepValidate, *res)
		return *res
	}
	emit.StepComplete(StepValidate, "Request validated", nil)

	// Step 1: intent parsing.
	if res := o.aborted(ctx, emit, StepIntent); res != nil {
		return *res
	}
	emit.StepStart(StepIntent, "parse_intent", "Understanding your request")
	emit.Thinking(StepIntent, "Analyzing request intent")
	stepStart := o.deps.Clock.Now()
	parsed, err := o.deps.Parser.Parse(ctx, userText, project)
	o.deps.Metrics.ObserveStage("intent", o.deps.Clock.Now().Sub(stepStart))
	if err != nil {
		log.Warn("intent parsing failed", zap.Error(err))
		r := errorResult(discovery.ErrTypeParsingFailed, fmt.Sprintf("Could not understand the request: %v", err))
		emit.StepFailed(StepIntent, r)
		return r
	}
	emit.StepComplete(StepIntent, fmt.Sprintf("Searching for %q", parsed.Query), map[string]any{
		"query":        parsed.Query,
		"max_products": parsed.MaxProducts,
	})

	// Step 2: criteria extraction and validation, only when filters were given.
	if res := o.aborted(ctx, emit, StepCriteria); res != nil {
		return *res
	}
	criteria, platform, res := o.prepareCriteria(ctx, emit, log, parsed.FilterText)
	if res != nil {
		return *res
	}

	// Step 3: AI product search.
	if res := o.aborted(ctx, emit, StepSearch); res != nil {
		return *res
	}
	emit.StepStart(StepSearch, "search", "Searching marketplaces")
	emit.Thinking(StepSearch, "Researching matching products")
	stepStart = o.deps.Clock.Now()
	// Ask for double the requested count so filtering has headroom.
	searchResult, err := o.deps.Searcher.Search(ctx, parsed.Query, project.Description, project.TargetBudget, parsed.MaxProducts*2, platform)
	o.deps.Metrics.ObserveStage("search", o.deps.Clock.Now().Sub(stepStart))
	if err != nil {
		r := canceledResult(err)
		emit.StepFailed(StepSearch, r)
		return r
	}
	o.storeGrounding(projectID, searchResult, log)
	if len(searchResult.Products) == 0 {
		msg := "No matching products found"
		if searchResult.RawError != "" {
			msg = fmt.Sprintf("No matching products found: %s", searchResult.RawError)
		}
		r := errorResult(discovery.ErrTypeNoProductsFound, msg)
		r.FilterCriteria = criteria
		emit.StepFailed(StepSearch, r)
		return r
	}
	emit.StepComplete(StepSearch, fmt.Sprintf("Found %d candidate products", len(searchResult.Products)), map[string]any{
		"candidates": len(searchResult.Products),
	})

	// Step 4: crawl dispatch.
	if res := o.aborted(ctx, emit, StepCrawl); res != nil {
		return *res
	}
	emit.StepStart(StepCrawl, "crawl", "Collecting product listings")
	stepStart = o.deps.Clock.Now()
	listings, err := o.deps.Crawler.Crawl(ctx, searchResult.Products, func(done, total, collected int) {
		emit.Progress(StepCrawl, fmt.Sprintf("Crawled %d/%d pages", done, total), map[string]any{
			"urls_done":  done,
			"urls_total": total,
			"collected":  collected,
		})
	})
	o.deps.Metrics.ObserveStage("crawl", o.deps.Clock.Now().Sub(stepStart))
	if err != nil {
		r := canceledResult(err)
		emit.StepFailed(StepCrawl, r)
		return r
	}
	o.deps.Metrics.CrawlListings.Add(float64(len(listings)))
	if len(listings) == 0 {
		r := errorResult(discovery.ErrTypeCrawlFailed, "Could not collect any product listings from the marketplaces")
		r.FilterCriteria = criteria
		emit.StepFailed(StepCrawl, r)
		return r
	}
	emit.StepComplete(StepCrawl, fmt.Sprintf("Collected %d listings", len(listings)), map[string]any{
		"listings": len(listings),
	})

	// Step 5: deterministic filtering.
	if res := o.aborted(ctx, emit, StepFilter); res != nil {
		return *res
	}
	emit.StepStart(StepFilter, "filter", "Applying your filters")
	passed, verdicts := filter.Apply(listings, criteria)
	rejected := summarizeVerdicts(verdicts, false)
	emit.StepComplete(StepFilter, fmt.Sprintf("%d of %d listings passed", len(passed), len(listings)), map[string]any{
		"passed":   len(passed),
		"rejected": len(listings) - len(passed),
	})
	if len(passed) == 0 {
		r := errorResult(discovery.ErrTypeNoProductsAfterFilter, "No products matched your filters")
		r.FilterCriteria = criteria
		r.ProductsFound = len(listings)
		r.RejectedProducts = rejected
		r.CrawledSummary = summarizeCrawled(listings)
		emit.StepFailed(StepFilter, r)
		return r
	}

	// Step 5.5: AI ranking, only when there is something to cut.
	rankOutcome := ranking.Result{Selected: passed}
	if len(passed) > parsed.MaxProducts {
		if res := o.aborted(ctx, emit, StepRanking); res != nil {
			return *res
		}
		emit.StepStart(StepRanking, "rank", fmt.Sprintf("Selecting the best %d products", parsed.MaxProducts))
		emit.Thinking(StepRanking, "Ranking filtered products")
		stepStart = o.deps.Clock.Now()
		rankOutcome = o.deps.Ranker.Rank(ctx, parsed.Query, passed, parsed.MaxProducts)
		o.deps.Metrics.ObserveStage("rank", o.deps.Clock.Now().Sub(stepStart))
		emit.StepComplete(StepRanking, fmt.Sprintf("Selected %d products", len(rankOutcome.Selected)), map[string]any{
			"selected": len(rankOutcome.Selected),
			"fallback": rankOutcome.Fallback,
		})
	}

	// Step 6: import with dedup.
	if res := o.aborted(ctx, emit, StepImport); res != nil {
		return *res
	}
	emit.StepStart(StepImport, "import", "Importing products into your project")
	stepStart = o.deps.Clock.Now()
	outcome, err := o.deps.Importer.Import(ctx, projectID, userID, rankOutcome.Selected)
	o.deps.Metrics.ObserveStage("import", o.deps.Clock.Now().Sub(stepStart))
	o.deps.Metrics.CountImports(outcome.Imported, outcome.Duplicates, outcome.Failed)
	if err != nil {
		log.Error("import aborted", zap.Error(err))
		r := errorResult(discovery.ErrTypeImportFailed, fmt.Sprintf("Import failed: %v", err))
		r.FilterCriteria = criteria
		emit.StepFailed(StepImport, r)
		return r
	}
	if outcome.Imported == 0 {
		msg := "Products were found but none could be imported"
		if outcome.Duplicates > 0 {
			msg = fmt.Sprintf("Products were found but none could be imported (%d already in the project)", outcome.Duplicates)
		}
		r := errorResult(discovery.ErrTypeImportFailed, msg)
		r.FilterCriteria = criteria
		r.ProductsFound = len(listings)
		r.ProductsFiltered = len(passed)
		emit.StepFailed(StepImport, r)
		return r
	}
	emit.StepComplete(StepImport, fmt.Sprintf("Imported %d products (%d duplicates skipped)", outcome.Imported, outcome.Duplicates), map[string]any{
		"imported":   outcome.Imported,
		"duplicates": outcome.Duplicates,
		"failed":     outcome.Failed,
	})

	return discovery.RunResult{
		Status:             discovery.RunSuccess,
		Message:            fmt.Sprintf("Imported %d products into the project", outcome.Imported),
		FilterCriteria:     criteria,
		ProductsFound:      len(listings),
		ProductsFiltered:   len(passed),
		ProductsImported:   outcome.Imported,
		ImportedProductIDs: outcome.ImportedIDs,
		RejectedProducts:   rejected,
		PassedProducts:     summarizeListings(rankOutcome.Selected),
		CrawledSummary:     summarizeCrawled(listings),
		RankingAnalysis:    rankOutcome.Analysis,
	}
}

// validate runs the step-0 guards and loads the project. A non-nil result is
// terminal.
func (o *Orchestrator) validate(ctx context.Context, projectID uuid.UUID, userText string) (discovery.Project, *discovery.RunResult) {
	trimmed := strings.TrimSpace(userText)
	if trimmed == "" {
		r := errorResult(discovery.ErrTypeInvalidInput, "Request text is empty")
		return discovery.Project{}, &r
	}
	if len(userText) > maxInputLen {
		r := errorResult(discovery.ErrTypeInputTooLong, fmt.Sprintf("Request text exceeds %d characters", maxInputLen))
		return discovery.Project{}, &r
	}

	project, err := o.deps.Projects.Get(ctx, projectID)
	if err != nil {
		r := errorResult(discovery.ErrTypeProjectNotFound, "Project not found")
		return discovery.Project{}, &r
	}
	if strings.TrimSpace(project.TargetProductName) == "" {
		r := errorResult(discovery.ErrTypeProjectIncomplete, "Project has no target product configured")
		return discovery.Project{}, &r
	}
	return project, nil
}

// prepareCriteria runs step 2. It returns the criteria (nil when the request
// carried no filters), the platform scope for search, and a terminal result
// on failure; terminal failures have already been emitted.
func (o *Orchestrator) prepareCriteria(ctx context.Context, emit *Emitter, log *zap.Logger, filterText string) (*discovery.FilterCriteria, string, *discovery.RunResult) {
	if strings.TrimSpace(filterText) == "" {
		emit.StepStart(StepCriteria, "extract_criteria", "No filters requested")
		emit.StepComplete(StepCriteria, "Skipping filter extraction", nil)
		return nil, discovery.PlatformAll, nil
	}

	emit.StepStart(StepCriteria, "extract_criteria", "Extracting filter criteria")
	emit.Thinking(StepCriteria, "Interpreting your filters")
	stepStart := o.deps.Clock.Now()
	criteria, err := o.deps.Extractor.Extract(ctx, filterText)
	if err != nil {
		o.deps.Metrics.ObserveStage("criteria", o.deps.Clock.Now().Sub(stepStart))
		log.Warn("criteria extraction failed", zap.Error(err))
		r := errorResult(discovery.ErrTypeIntentParsingFailed, fmt.Sprintf("Could not interpret the filters: %v", err))
		emit.StepFailed(StepCriteria, r)
		return nil, "", &r
	}

	// Platform policy runs before the validation round trip so an
	// unserviceable request fails without another model call.
	serviceable, rejected := intent.ServiceablePlatforms(criteria.Platforms, o.cfg.ExcludedPlatforms)
	if len(rejected) > 0 && len(serviceable) == 0 {
		r := errorResult(discovery.ErrTypePlatformNotSupported, fmt.Sprintf("Platform %s is not supported", strings.Join(rejected, ", ")))
		r.FilterCriteria = criteria
		r.SuggestedPlatforms = o.suggestedPlatforms()
		emit.StepFailed(StepCriteria, r)
		return nil, "", &r
	}
	criteria.Platforms = serviceable

	valid, reason := o.deps.Validator.Validate(ctx, filterText, criteria)
	o.deps.Metrics.ObserveStage("criteria", o.deps.Clock.Now().Sub(stepStart))
	if !valid {
		r := errorResult(discovery.ErrTypeCriteriaValidationFailed, fmt.Sprintf("Extracted filters did not match the request: %s", reason))
		r.FilterCriteria = criteria
		emit.StepFailed(StepCriteria, r)
		return nil, "", &r
	}

	platform := discovery.PlatformAll
	if len(serviceable) == 1 {
		platform = serviceable[0]
	}
	emit.StepComplete(StepCriteria, "Filters understood", map[string]any{
		"platforms": criteria.Platforms,
	})
	return criteria, platform, nil
}

// aborted emits the terminal failure event when the run context is already
// done at the boundary of step.
func (o *Orchestrator) aborted(ctx context.Context, emit *Emitter, step string) *discovery.RunResult {
	if err := ctx.Err(); err != nil {
		r := canceledResult(err)
		emit.StepFailed(step, r)
		return &r
	}
	return nil
}

// suggestedPlatforms lists the crawlable marketplaces offered to the user
// when their requested platform is excluded.
func (o *Orchestrator) suggestedPlatforms() []string {
	all := []string{discovery.PlatformLazada, discovery.PlatformTiki, discovery.PlatformShopee}
	excluded := make(map[string]struct{}, len(o.cfg.ExcludedPlatforms))
	for _, p := range o.cfg.ExcludedPlatforms {
		excluded[strings.ToLower(p)] = struct{}{}
	}
	var out []string
	for _, p := range all {
		if _, ok := excluded[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// storeGrounding writes the search grounding metadata as an audit artifact,
// best effort.
func (o *Orchestrator) storeGrounding(projectID uuid.UUID, result search.Result, log *zap.Logger) {
	if o.deps.Artifacts == nil {
		return
	}
	if result.Grounding.Analyze == nil && result.Grounding.Links == nil {
		return
	}
	payload, err := json.Marshal(result.Grounding)
	if err != nil {
		return
	}
	path := fmt.Sprintf("grounding/%s/%d.json", projectID, o.deps.Clock.Now().UnixNano())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := o.deps.Artifacts.Put(ctx, path, "application/json", payload); err != nil {
		log.Warn("storing grounding artifact failed", zap.Error(err))
	}
}

// finishRun publishes the completion notification and the result artifact.
// Both are best effort and use a fresh context: the run context may already
// be canceled by the time the run ends.
func (o *Orchestrator) finishRun(projectID uuid.UUID, result discovery.RunResult, runStart time.Time, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if o.deps.Notifier != nil {
		payload := map[string]any{
			"project_id":        projectID.String(),
			"status":            result.Status,
			"error_type":        result.ErrorType,
			"products_imported": result.ProductsImported,
			"duration_ms":       o.deps.Clock.Now().Sub(runStart).Milliseconds(),
		}
		if _, err := o.deps.Notifier.Publish(ctx, o.cfg.CompletionTopic, payload); err != nil {
			log.Warn("publishing run notification failed", zap.Error(err))
		}
	}

	if o.deps.Artifacts != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return
		}
		path := fmt.Sprintf("runs/%s/%d.json", projectID, o.deps.Clock.Now().UnixNano())
		if _, err := o.deps.Artifacts.Put(ctx, path, "application/json", data); err != nil {
			log.Warn("storing run artifact failed", zap.Error(err))
		}
	}
}

func canceledResult(err error) discovery.RunResult {
	return errorResult(discovery.ErrTypeExecutionError, fmt.Sprintf("Run aborted: %v", err))
}

func errorResult(errType discovery.ErrorType, msg string) discovery.RunResult {
	return discovery.RunResult{
		Status:    discovery.RunError,
		Message:   msg,
		ErrorType: errType,
	}
}

func summarizeVerdicts(verdicts []discovery.FilterVerdict, passed bool) []discovery.ListingSummary {
	var out []discovery.ListingSummary
	for _, v := range verdicts {
		if v.Passed != passed {
			continue
		}
		out = append(out, discovery.Summarize(v.Listing, v.Reason))
	}
	return out
}

func summarizeListings(listings []discovery.ScrapedListing) []discovery.ListingSummary {
	out := make([]discovery.ListingSummary, 0, len(listings))
	for _, l := range listings {
		out = append(out, discovery.Summarize(l, ""))
	}
	return out
}

// summarizeCrawled keeps the crawled overview bounded for event payloads.
func summarizeCrawled(listings []discovery.ScrapedListing) []discovery.ListingSummary {
	if len(listings) > maxCrawledSummary {
		listings = listings[:maxCrawledSummary]
	}
	return summarizeListings(listings)
}

package deduplication

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/normalize"
	"github.com/steveyegge/dupcheck/internal/types"
)

// Detector is the decision function callers embed.
type Detector interface {
	// Check decides whether candidate duplicates any invoice in
	// cctx.HistoricalInvoices. It returns a *ValidationError for unusable
	// input and otherwise always returns a result, falling back to the
	// fail-safe result on internal failure.
	Check(candidate *types.InvoiceCandidate, cctx *CheckContext) (*Result, error)

	// CheckBatch checks candidates in order, comparing each one against the
	// history and every earlier valid candidate of the batch.
	CheckBatch(candidates []*types.InvoiceCandidate, cctx *CheckContext) (*BatchResult, error)
}

// Engine implements Detector. It holds no per-check state, so one Engine may
// serve concurrent checks.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	analyzers  []analyzer
	exact      func(in *analysisInput) ([]ExactMatch, error)
	contextual func(in *analysisInput, evidence []MatchEvidence) (*ContextualAnalysis, error)
	now        func() time.Time
}

// Compile-time check that Engine implements Detector
var _ Detector = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine with the given configuration.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		logger:     zap.NewNop(),
		analyzers:  defaultAnalyzers(),
		exact:      findExactMatches,
		contextual: analyzeContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// checkRun is the mutable state of one check.
type checkRun struct {
	checkID     string
	contentHash string
	cfg         Config
	trail       *events.Trail
	started     time.Time
	stageStart  time.Time
	stageMicros map[events.Stage]int64
	compared    int
}

func (e *Engine) newRun(cfg Config, compared int) *checkRun {
	now := e.now()
	id := uuid.New().String()
	return &checkRun{
		checkID:     id,
		cfg:         cfg,
		trail:       events.NewTrail(id),
		started:     now,
		stageStart:  now,
		stageMicros: make(map[events.Stage]int64),
		compared:    compared,
	}
}

// enter records a stage transition and its timing.
func (e *Engine) enter(run *checkRun, stage events.Stage, message string, snapshot interface{}) error {
	if err := run.trail.Record(stage, events.SeverityInfo, message, snapshot); err != nil {
		return &SystemError{Stage: run.trail.Stage(), Err: err}
	}
	now := e.now()
	run.stageMicros[stage] = now.Sub(run.stageStart).Microseconds()
	run.stageStart = now
	e.logger.Debug("duplicate check stage",
		zap.String("check_id", run.checkID),
		zap.String("stage", string(stage)),
		zap.String("message", message))
	return nil
}

// Check implements Detector.
func (e *Engine) Check(candidate *types.InvoiceCandidate, cctx *CheckContext) (*Result, error) {
	if candidate == nil {
		return nil, ErrNilCandidate
	}
	if cctx == nil {
		cctx = &CheckContext{}
	}

	cfg, verr := e.effectiveConfig(cctx)
	if verr != nil {
		e.logger.Warn("rejecting check context", zap.String("field", verr.Field), zap.String("reason", verr.Reason))
		return nil, verr
	}

	run := e.newRun(cfg, len(cctx.HistoricalInvoices))
	if err := e.enter(run, events.StageInitialized, "duplicate check started", initSnapshot{
		InvoiceNumber:   candidate.InvoiceNumber,
		SupplierName:    candidate.SupplierName,
		HistoricalCount: len(cctx.HistoricalInvoices),
	}); err != nil {
		return e.failSafe(run, err), nil
	}

	if verr := validateCandidate(candidate, cfg); verr != nil {
		e.logger.Warn("rejecting invoice candidate",
			zap.String("check_id", run.checkID),
			zap.String("field", verr.Field),
			zap.String("reason", verr.Reason))
		return nil, verr
	}

	result, err := e.analyze(run, candidate, cctx)
	if err != nil {
		return e.failSafe(run, err), nil
	}
	return result, nil
}

// effectiveConfig applies per-call overrides and validates the custom rules.
func (e *Engine) effectiveConfig(cctx *CheckContext) (Config, *ValidationError) {
	cfg := e.cfg
	if cctx.TemporalWindowDays < 0 {
		return cfg, &ValidationError{Field: "temporal_window_days", Reason: fmt.Sprintf("cannot be negative (got %d)", cctx.TemporalWindowDays)}
	}
	if cctx.TemporalWindowDays > 0 {
		cfg.TemporalWindow = time.Duration(cctx.TemporalWindowDays) * 24 * time.Hour
	}
	if cctx.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *cctx.ConfidenceThreshold
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &ValidationError{Field: "check_context", Reason: err.Error()}
	}
	for i, rule := range cctx.CustomRules {
		if err := rule.Validate(); err != nil {
			return cfg, &ValidationError{Field: fmt.Sprintf("custom_rules[%d]", i), Reason: err.Error()}
		}
	}
	return cfg, nil
}

// validateCandidate enforces the always-required fields and the configured ones.
func validateCandidate(c *types.InvoiceCandidate, cfg Config) *ValidationError {
	if err := c.Validate(); err != nil {
		var fe *types.FieldError
		if errors.As(err, &fe) {
			return &ValidationError{Field: fe.Field, Reason: fe.Reason}
		}
		return &ValidationError{Field: "candidate", Reason: err.Error()}
	}
	for _, f := range cfg.RequiredFields {
		if !c.HasField(f) {
			return &ValidationError{Field: f, Reason: "is required by configuration"}
		}
	}
	return nil
}

// analyze runs everything after validation. Any error or panic it produces
// becomes the fail-safe result.
func (e *Engine) analyze(run *checkRun, candidate *types.InvoiceCandidate, cctx *CheckContext) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &SystemError{Stage: run.trail.Stage(), Err: &panicError{value: r}}
		}
	}()

	cfg := run.cfg
	hash, err := normalize.ContentHash(candidate)
	if err != nil {
		return nil, &SystemError{Stage: run.trail.Stage(), Err: err}
	}
	run.contentHash = hash

	if err := e.enter(run, events.StageValidated, "candidate validated", validatedSnapshot{
		ContentHash:    hash,
		RequiredFields: cfg.RequiredFields,
	}); err != nil {
		return nil, err
	}

	in := newAnalysisInput(candidate, hash, cctx, cfg)

	exact, err := e.exact(in)
	if err != nil {
		return nil, &SystemError{Stage: events.StageValidated, Analyzer: "exact_match", Err: err}
	}
	if len(exact) > 0 {
		return e.exactResult(run, in, exact)
	}

	slots, err := runAnalyzers(e.analyzers, in, cfg.ParallelAnalyzers)
	if err != nil {
		return nil, err
	}

	fuzzy := collect(e.analyzers, slots, events.StageFuzzyAnalyzed)
	if err := e.enter(run, events.StageFuzzyAnalyzed,
		fmt.Sprintf("%d fuzzy matches", len(fuzzy)), splitEvidence(fuzzy)); err != nil {
		return nil, err
	}

	clusters := collect(e.analyzers, slots, events.StageClustered)
	if err := e.enter(run, events.StageClustered,
		fmt.Sprintf("%d cluster and line-item records", len(clusters)), splitEvidence(clusters)); err != nil {
		return nil, err
	}

	evidence := make([]MatchEvidence, 0, len(fuzzy)+len(clusters))
	evidence = append(evidence, fuzzy...)
	evidence = append(evidence, clusters...)

	ca, err := e.contextual(in, evidence)
	if err != nil {
		return nil, &SystemError{Stage: events.StageClustered, Analyzer: "contextual", Err: err}
	}
	if err := e.enter(run, events.StageContextualized,
		fmt.Sprintf("recommendation %s", ca.Recommendation), ca); err != nil {
		return nil, err
	}

	breakdown := scoreEvidence(evidence, ca, cfg)
	dupType := classify(breakdown.Overall, splitEvidence(evidence), cfg)
	risk := riskFor(dupType, breakdown.Overall, cfg)

	result = &Result{
		CheckID:                run.checkID,
		ContentHash:            hash,
		IsDuplicate:            breakdown.Overall >= cfg.ConfidenceThreshold,
		DuplicateType:          dupType,
		Confidence:             breakdown.Overall,
		Breakdown:              breakdown,
		RiskLevel:              risk,
		InvestigationPriority:  priorityFor(risk, breakdown.Overall),
		PotentialDuplicates:    rankPotentialDuplicates(in, evidence),
		MitigationActions:      mitigationFor(risk, dupType),
		Contextual:             ca,
		DuplicateThreshold:     cfg.ConfidenceThreshold,
		LowConfidenceThreshold: cfg.LowConfidenceThreshold,
		ComparedCount:          run.compared,
	}
	result.setFlags()

	if err := e.enter(run, events.StageScored,
		fmt.Sprintf("%s at %.2f, risk %s", dupType, breakdown.Overall, risk), scoredSnapshot{
			Breakdown:     breakdown,
			DuplicateType: dupType,
			RiskLevel:     risk,
			IsDuplicate:   result.IsDuplicate,
		}); err != nil {
		return nil, err
	}
	return e.complete(run, result)
}

// exactResult builds the short-circuit result for exact matches.
func (e *Engine) exactResult(run *checkRun, in *analysisInput, matches []ExactMatch) (*Result, error) {
	if err := e.enter(run, events.StageExactMatched,
		fmt.Sprintf("%d exact matches", len(matches)), exactSnapshot{Matches: matches}); err != nil {
		return nil, err
	}

	result := &Result{
		CheckID:                run.checkID,
		ContentHash:            run.contentHash,
		IsDuplicate:            true,
		DuplicateType:          types.DuplicateExact,
		Confidence:             1.0,
		Breakdown:              ConfidenceBreakdown{Unclamped: 1.0, Overall: 1.0},
		RiskLevel:              types.RiskCritical,
		InvestigationPriority:  priorityFor(types.RiskCritical, 1.0),
		PotentialDuplicates:    exactPotentialDuplicates(in, matches),
		MitigationActions:      mitigationFor(types.RiskCritical, types.DuplicateExact),
		DuplicateThreshold:     run.cfg.ConfidenceThreshold,
		LowConfidenceThreshold: run.cfg.LowConfidenceThreshold,
		ComparedCount:          run.compared,
	}
	result.setFlags()
	return e.complete(run, result)
}

// complete records the terminal entry and attaches the trail and timing.
func (e *Engine) complete(run *checkRun, result *Result) (*Result, error) {
	if err := e.enter(run, events.StageCompleted, "duplicate check completed", completedSnapshot{
		IsDuplicate:         result.IsDuplicate,
		DuplicateType:       result.DuplicateType,
		RiskLevel:           result.RiskLevel,
		Confidence:          result.Confidence,
		PotentialDuplicates: len(result.PotentialDuplicates),
	}); err != nil {
		return nil, err
	}
	e.finish(run, result)
	e.logger.Debug("duplicate check completed",
		zap.String("check_id", run.checkID),
		zap.Bool("is_duplicate", result.IsDuplicate),
		zap.String("duplicate_type", string(result.DuplicateType)),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

func (e *Engine) finish(run *checkRun, result *Result) {
	done := e.now()
	result.AuditTrail = run.trail.Entries()
	result.Timing = Timing{
		StartedAt:   run.started.UTC(),
		CompletedAt: done.UTC(),
		DurationMs:  done.Sub(run.started).Milliseconds(),
		StageMicros: run.stageMicros,
	}
}

// failSafe builds the blocking result returned whenever the pipeline fails.
func (e *Engine) failSafe(run *checkRun, err error) *Result {
	var sysErr *SystemError
	if !errors.As(err, &sysErr) {
		sysErr = &SystemError{Stage: run.trail.Stage(), Err: err}
	}
	e.logger.Error("duplicate check failed, returning fail-safe result",
		zap.String("check_id", run.checkID),
		zap.String("stage", string(sysErr.Stage)),
		zap.String("analyzer", sysErr.Analyzer),
		zap.Error(sysErr))

	result := &Result{
		CheckID:                run.checkID,
		ContentHash:            run.contentHash,
		IsDuplicate:            true,
		DuplicateType:          types.DuplicateExact,
		Confidence:             1.0,
		Breakdown:              ConfidenceBreakdown{Unclamped: 1.0, Overall: 1.0},
		RiskLevel:              types.RiskSevere,
		InvestigationPriority:  types.PriorityImmediate,
		MitigationActions:      actionSet(failSafeActions()),
		FailSafe:               true,
		FailureReason:          sysErr.Error(),
		DuplicateThreshold:     run.cfg.ConfidenceThreshold,
		LowConfidenceThreshold: run.cfg.LowConfidenceThreshold,
		ComparedCount:          run.compared,
	}
	result.setFlags()

	if ferr := run.trail.Fail("duplicate check failed; fail-safe result returned", failedSnapshot{
		Stage:    sysErr.Stage,
		Analyzer: sysErr.Analyzer,
		Error:    sysErr.Error(),
	}); ferr != nil {
		e.logger.Error("could not record FAILED audit entry", zap.String("check_id", run.checkID), zap.Error(ferr))
	}
	run.stageMicros[events.StageFailed] = e.now().Sub(run.stageStart).Microseconds()
	e.finish(run, result)
	return result
}

// Audit snapshots, one per stage.

type initSnapshot struct {
	InvoiceNumber   string `json:"invoice_number"`
	SupplierName    string `json:"supplier_name"`
	HistoricalCount int    `json:"historical_count"`
}

type validatedSnapshot struct {
	ContentHash    string   `json:"content_hash"`
	RequiredFields []string `json:"required_fields,omitempty"`
}

type exactSnapshot struct {
	Matches []ExactMatch `json:"matches"`
}

type scoredSnapshot struct {
	Breakdown     ConfidenceBreakdown `json:"breakdown"`
	DuplicateType types.DuplicateType `json:"duplicate_type"`
	RiskLevel     types.RiskLevel     `json:"risk_level"`
	IsDuplicate   bool                `json:"is_duplicate"`
}

type completedSnapshot struct {
	IsDuplicate         bool                `json:"is_duplicate"`
	DuplicateType       types.DuplicateType `json:"duplicate_type"`
	RiskLevel           types.RiskLevel     `json:"risk_level"`
	Confidence          float64             `json:"confidence"`
	PotentialDuplicates int                 `json:"potential_duplicates"`
}

type failedSnapshot struct {
	Stage    events.Stage `json:"stage"`
	Analyzer string       `json:"analyzer,omitempty"`
	Error    string       `json:"error"`
}

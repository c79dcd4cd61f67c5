package aggregation

import (
	"context"
	"log/slog"
	"time"

	"github.com/bqworks/paygrid/internal/ai"
	"github.com/bqworks/paygrid/internal/domain"
)

// System prompts are fixed per subscription type.
const (
	salaryAnalysisPrompt = "You are an analyst for a compensation-data service. " +
		"Given current aggregate salary statistics and up to three prior " +
		"comparison points, write a short plain-text commentary on the trend. " +
		"Mention sample size, median movement and any notable distribution shift. " +
		"Do not use markup."

	reviewAnalysisPrompt = "You are an analyst for a company-review service. " +
		"Given current aggregate review statistics and up to three prior " +
		"comparison points, write a short plain-text commentary on how ratings " +
		"are moving. Do not use markup."
)

// Default spacing of historical comparison points.
var defaultHistoryOffsets = []time.Duration{
	7 * 24 * time.Hour,
	14 * 24 * time.Hour,
	21 * 24 * time.Hour,
}

// FormatterConfig tunes report formatting.
type FormatterConfig struct {
	// AiTimeout bounds each provider call independently of the batch.
	AiTimeout time.Duration
	// HistoryOffsets are the look-back distances for comparison points.
	HistoryOffsets []time.Duration
}

// DefaultFormatterConfig returns the production defaults.
func DefaultFormatterConfig() FormatterConfig {
	return FormatterConfig{
		AiTimeout:      30 * time.Second,
		HistoryOffsets: defaultHistoryOffsets,
	}
}

// Formatter turns a snapshot into a transport-agnostic report. The
// numeric summary is always produced; the AI narrative is best-effort
// and degrades to numbers-only on any provider failure.
type Formatter struct {
	assembler *Assembler
	analyzer  ai.Analyzer
	config    FormatterConfig
}

// NewFormatter creates a formatter. analyzer may be nil when AI analysis
// is disabled process-wide.
func NewFormatter(assembler *Assembler, analyzer ai.Analyzer, config FormatterConfig) *Formatter {
	if config.AiTimeout == 0 {
		config.AiTimeout = 30 * time.Second
	}
	if len(config.HistoryOffsets) == 0 {
		config.HistoryOffsets = defaultHistoryOffsets
	}
	return &Formatter{assembler: assembler, analyzer: analyzer, config: config}
}

type analysisPayload struct {
	Current domain.Snapshot       `json:"current"`
	History []domain.HistoryPoint `json:"history"`
}

// Format builds the report for a subscription. It never fails: an AI
// outage marks the report degraded instead.
func (f *Formatter) Format(ctx context.Context, sub *domain.Subscription, snapshot *domain.Snapshot, asOf time.Time) *domain.Report {
	rep := &domain.Report{
		SubscriptionName: sub.Name,
		Kind:             sub.Kind,
		Snapshot:         *snapshot,
		GeneratedAt:      asOf,
	}

	if !sub.UseAiAnalysis {
		return rep
	}
	if f.analyzer == nil {
		slog.Debug("ai analysis requested but no analyzer configured", "subscription_id", sub.ID)
		rep.AiSectionDegraded = true
		recordAiDegraded()
		return rep
	}

	rep.History = f.collectHistory(ctx, sub, asOf)

	aiCtx, cancel := context.WithTimeout(ctx, f.config.AiTimeout)
	defer cancel()

	analysis, err := f.analyzer.Analyze(aiCtx, ai.AnalysisRequest{
		SystemPrompt: promptFor(sub.Kind),
		Payload: analysisPayload{
			Current: *snapshot,
			History: rep.History,
		},
	})
	if err != nil {
		slog.Warn("ai analysis failed, degrading to numeric report",
			"subscription_id", sub.ID,
			"error", err,
		)
		rep.AiSectionDegraded = true
		recordAiDegraded()
		return rep
	}

	rep.Narrative = analysis.Text
	return rep
}

// collectHistory computes prior comparison points with the same assembler.
// A failed point is skipped; history is advisory input for the AI section.
func (f *Formatter) collectHistory(ctx context.Context, sub *domain.Subscription, asOf time.Time) []domain.HistoryPoint {
	history := make([]domain.HistoryPoint, 0, len(f.config.HistoryOffsets))
	for _, offset := range f.config.HistoryOffsets {
		pointAsOf := asOf.Add(-offset)
		snap, err := f.assembler.Assemble(ctx, sub, pointAsOf)
		if err != nil {
			slog.Warn("history point computation failed, skipping",
				"subscription_id", sub.ID,
				"as_of", pointAsOf,
				"error", err,
			)
			continue
		}
		history = append(history, domain.HistoryPoint{AsOf: pointAsOf, Snapshot: *snap})
	}
	return history
}

func promptFor(kind domain.SubscriptionKind) string {
	if kind == domain.SubscriptionKindCompanyReview {
		return reviewAnalysisPrompt
	}
	return salaryAnalysisPrompt
}

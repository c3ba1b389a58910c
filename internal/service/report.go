package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bonjohen/second-brain/internal/domain"
)

// HealthReport is a point-in-time census of the substrate.
type HealthReport struct {
	GeneratedAt        time.Time      `json:"generated_at"`
	Notes              int            `json:"notes"`
	Sources            int            `json:"sources"`
	Edges              int            `json:"edges"`
	AuditEntries       int            `json:"audit_entries"`
	UnprocessedSignals int            `json:"unprocessed_signals"`
	BeliefsByStatus    map[string]int `json:"beliefs_by_status"`
}

// ReportService aggregates counts across all stores.
type ReportService struct {
	notes   domain.NoteStore
	sources domain.SourceStore
	beliefs domain.BeliefStore
	edges   domain.EdgeStore
	signals domain.SignalStore
	audits  domain.AuditStore
}

func NewReportService(notes domain.NoteStore, sources domain.SourceStore, beliefs domain.BeliefStore, edges domain.EdgeStore, signals domain.SignalStore, audits domain.AuditStore) *ReportService {
	return &ReportService{notes: notes, sources: sources, beliefs: beliefs, edges: edges, signals: signals, audits: audits}
}

// Health counts every entity type. Statuses with zero beliefs are included
// so the report shape is stable.
func (s *ReportService) Health(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{GeneratedAt: time.Now().UTC()}

	var err error
	if report.Notes, err = s.notes.Count(ctx); err != nil {
		return nil, fmt.Errorf("count notes: %w", err)
	}
	if report.Sources, err = s.sources.Count(ctx); err != nil {
		return nil, fmt.Errorf("count sources: %w", err)
	}
	if report.Edges, err = s.edges.Count(ctx); err != nil {
		return nil, fmt.Errorf("count edges: %w", err)
	}
	if report.AuditEntries, err = s.audits.Count(ctx); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}
	if report.UnprocessedSignals, err = s.signals.CountUnprocessed(ctx); err != nil {
		return nil, fmt.Errorf("count unprocessed signals: %w", err)
	}

	byStatus, err := s.beliefs.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count beliefs: %w", err)
	}
	report.BeliefsByStatus = map[string]int{
		string(domain.StatusProposed):   0,
		string(domain.StatusActive):     0,
		string(domain.StatusChallenged): 0,
		string(domain.StatusDeprecated): 0,
		string(domain.StatusArchived):   0,
	}
	for status, n := range byStatus {
		report.BeliefsByStatus[string(status)] = n
	}
	return report, nil
}

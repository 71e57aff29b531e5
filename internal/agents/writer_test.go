package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scribelab/scribe/internal/capability"
)

func longDraft() string {
	return "# Report\n\n## Introduction\n" + strings.Repeat("Renewable storage matters. ", 20) +
		"\n## Conclusion\nIt will keep mattering.\n"
}

func TestWriteReturnsDraft(t *testing.T) {
	gen := &fakeGenerator{responses: []string{longDraft()}}
	out, err := NewWriter(gen).Write(context.Background(), "topic", testFindings(), nil, capability.TierQuality)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Introduction") {
		t.Fatalf("unexpected draft %q", out)
	}
	if gen.requests[0].Tier != capability.TierQuality {
		t.Fatalf("expected quality tier, got %s", gen.requests[0].Tier)
	}
}

func TestWriteRejectsTrivialDraft(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"too short"}}
	_, err := NewWriter(gen).Write(context.Background(), "topic", testFindings(), nil, capability.TierFast)
	if !errors.Is(err, ErrReportTooShort) {
		t.Fatalf("expected ErrReportTooShort, got %v", err)
	}
}

func TestWriteMissingHeadingsIsNotFatal(t *testing.T) {
	body := strings.Repeat("No headings here but plenty of substance. ", 10)
	gen := &fakeGenerator{responses: []string{body}}
	out, err := NewWriter(gen).Write(context.Background(), "topic", testFindings(), nil, capability.TierFast)
	if err != nil {
		t.Fatalf("missing headings must only warn: %v", err)
	}
	if out == "" {
		t.Fatalf("expected draft back")
	}
}

func TestWriteIncludesCritiqueInPrompt(t *testing.T) {
	gen := &fakeGenerator{responses: []string{longDraft()}}
	critique := degradedCritique()
	critique.Suggestions = []string{"cover grid-scale economics"}
	if _, err := NewWriter(gen).Write(context.Background(), "topic", testFindings(), &critique, capability.TierFast); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gen.requests[0].Prompt, "cover grid-scale economics") {
		t.Fatalf("critique suggestions missing from prompt")
	}
}

func TestWritePropagatesGenerationError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	if _, err := NewWriter(gen).Write(context.Background(), "topic", testFindings(), nil, capability.TierFast); err == nil {
		t.Fatalf("expected error")
	}
}

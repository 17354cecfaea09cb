package adopter

import (
	"context"
	"fmt"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/markup"
)

// Scanner extracts embedded identifiers from text whose format is eligible.
type Scanner struct {
	gate      *FormatGate
	processor markup.Processor
}

// NewScanner creates a scanner over the given gate and text processor.
func NewScanner(gate *FormatGate, processor markup.Processor) *Scanner {
	return &Scanner{gate: gate, processor: processor}
}

// Extract returns the identifiers embedded in text. Ineligible formats
// return nothing without invoking the processor.
func (s *Scanner) Extract(ctx context.Context, text, format string) ([]string, error) {
	if !s.gate.IsEligible(ctx, format) {
		return nil, nil
	}

	res, err := s.processor.Process(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("process %s text: %w", format, err)
	}
	return res.Identifiers, nil
}

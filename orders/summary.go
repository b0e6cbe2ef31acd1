package orders

import (
	"context"
	"fmt"
	"strings"

	orderfsm "github.com/goliatone/go-orderfsm"
	"github.com/goliatone/go-orderfsm/fsm"
)

// FormatSummary renders counts in state declaration order, e.g. "Open=2 Completed=1".
func FormatSummary(counts map[orderfsm.OrderState]int) string {
	parts := make([]string, 0, len(orderfsm.AllStates()))
	for _, state := range orderfsm.AllStates() {
		parts = append(parts, fmt.Sprintf("%s=%d", state, counts[state]))
	}
	return strings.Join(parts, " ")
}

// SummaryJob returns a scheduler job logging the per state order counts.
func (s *Service) SummaryJob(logger fsm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = s.logger
	}
	return func(ctx context.Context) error {
		counts, err := s.Summary(ctx)
		if err != nil {
			return err
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		logger.WithContext(ctx).Info("orders summary total=%d %s", total, FormatSummary(counts))
		return nil
	}
}

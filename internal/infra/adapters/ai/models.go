// File: internal/infra/adapters/ai/models.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"rag-pipeline/internal/domain/ports/adapter"
)

// CheckModels lists the provider's models and returns the wanted names that
// are not among them. Empty and repeated names are ignored; a "models/"
// prefix on either side does not matter.
func CheckModels(ctx context.Context, svc adapter.AIServiceAdapter, wanted ...string) ([]string, error) {
	listed, err := svc.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	have := make(map[string]struct{}, len(listed))
	for _, m := range listed {
		have[strings.TrimPrefix(m, "models/")] = struct{}{}
	}

	var missing []string
	seen := map[string]struct{}{}
	for _, w := range wanted {
		w = strings.TrimPrefix(strings.TrimSpace(w), "models/")
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := have[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing, nil
}

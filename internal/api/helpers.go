package api

import (
	"strings"

	"github.com/listenupapp/tagnotes/internal/domain"
)

// toIDs converts raw ids, dropping blanks. A nil input stays nil.
func toIDs(raw []string) []domain.ID {
	if raw == nil {
		return nil
	}
	out := make([]domain.ID, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, domain.ID(r))
		}
	}
	return out
}

package reconcile

import (
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/model"
)

// ApplyCadastral copies found cadastral numbers onto the 2GIS records they
// were looked up for, matching by id and then by URL. Records without a
// lookup result keep their current number. It returns the number of
// records updated.
func ApplyCadastral(schools []model.SourceSchool, lookups []model.CadastralRecord) int {
	byID := make(map[string]string, len(lookups))
	byURL := make(map[string]string, len(lookups))
	for _, l := range lookups {
		if l.CadastralNumber == "" {
			continue
		}
		if l.ID != "" {
			byID[l.ID] = l.CadastralNumber
		}
		if l.URL != "" {
			byURL[l.URL] = l.CadastralNumber
		}
	}

	applied := 0
	for i := range schools {
		s := &schools[i]
		n, ok := byID[s.ID]
		if !ok || s.ID == "" {
			n, ok = byURL[s.URL]
			if !ok || s.URL == "" {
				continue
			}
		}
		s.CadastralNumber = n
		applied++
	}

	zap.L().Info("applied cadastral numbers",
		zap.Int("schools", len(schools)),
		zap.Int("lookups", len(lookups)),
		zap.Int("applied", applied),
	)
	return applied
}

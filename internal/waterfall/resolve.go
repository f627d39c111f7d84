package waterfall

import (
	"github.com/sells-group/bizdir/internal/model"
)

// Resolve picks the winning contribution for field: highest source priority,
// ties broken by the most recent UpdatedAt. Contributions with nil values never
// win. Returns nil when nothing qualifies.
func (c *Config) Resolve(field string, contributions []model.SourceContribution) *model.SourceContribution {
	var (
		winner *model.SourceContribution
		best   int
	)
	for i := range contributions {
		sc := &contributions[i]
		if sc.Value == nil {
			continue
		}
		p := c.Priority(field, sc.Source)
		switch {
		case winner == nil, p > best:
			winner, best = sc, p
		case p == best && sc.UpdatedAt.After(winner.UpdatedAt):
			winner = sc
		}
	}
	return winner
}

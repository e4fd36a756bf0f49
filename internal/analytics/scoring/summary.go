package scoring

import (
	"sort"

	"github.com/andresuchdata/invengine/internal/analytics/stats"
	"github.com/andresuchdata/invengine/internal/domain"
)

type Summary struct {
	TotalItems      int                       `json:"total_items"`
	ByRiskLevel     map[domain.RiskLevel]int  `json:"by_risk_level"`
	ByPrimaryFactor map[domain.RiskFactor]int `json:"by_primary_factor"`
	AvgScore        float64                   `json:"avg_score"`
	CriticalItems   int                       `json:"critical_items"`
	HighRiskItems   int                       `json:"high_risk_items"`
}

func Summarize(scores []domain.RiskScore) Summary {
	s := Summary{
		TotalItems:      len(scores),
		ByRiskLevel:     make(map[domain.RiskLevel]int),
		ByPrimaryFactor: make(map[domain.RiskFactor]int),
	}

	var total float64
	for _, r := range scores {
		s.ByRiskLevel[r.RiskLevel]++
		s.ByPrimaryFactor[r.PrimaryRiskFactor]++
		total += r.OverallScore

		switch r.RiskLevel {
		case domain.RiskCritical:
			s.CriticalItems++
			s.HighRiskItems++
		case domain.RiskHigh:
			s.HighRiskItems++
		case domain.RiskMedium, domain.RiskLow, domain.RiskMinimal:
		}
	}
	if len(scores) > 0 {
		s.AvgScore = stats.Round(total/float64(len(scores)), 2)
	}
	return s
}

// SortByScore orders scores by overall score descending, then by key.
func SortByScore(scores []domain.RiskScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].OverallScore != scores[j].OverallScore {
			return scores[i].OverallScore > scores[j].OverallScore
		}
		return scores[i].Key().Less(scores[j].Key())
	})
}

// PriorityItems returns the n highest scoring keys without modifying scores.
func PriorityItems(scores []domain.RiskScore, n int) []domain.RiskScore {
	out := make([]domain.RiskScore, len(scores))
	copy(out, scores)
	SortByScore(out)
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// FilterLevel keeps the scores at the given risk level.
func FilterLevel(scores []domain.RiskScore, level domain.RiskLevel) []domain.RiskScore {
	out := make([]domain.RiskScore, 0)
	for _, r := range scores {
		if r.RiskLevel == level {
			out = append(out, r)
		}
	}
	return out
}

package matching

import (
	"fmt"
	"sort"

	"github.com/getmockd/serialmock/pkg/template"
)

// NearMiss is an ask template that partially matched an incoming frame.
type NearMiss struct {
	// Index is the position of the ask in the table.
	Index           int    `json:"index"`
	Ask             string `json:"ask"`
	Score           int    `json:"score"`
	MaxScore        int    `json:"maxScore"`
	MatchPercentage int    `json:"matchPercentage"`
	Reason          string `json:"reason"`
}

// CollectNearMisses compares frame with every ask and returns the top N
// candidates. Same-length asks with at least one matching literal rank first
// by score; when none qualify, asks are ranked by how close their length is.
// Called only after a miss, so matched lookups pay nothing.
func CollectNearMisses(asks []*template.Template, frame []byte, topN int) []NearMiss {
	if topN <= 0 {
		topN = 3
	}

	var candidates, byLength []NearMiss
	for i, ask := range asks {
		if ask == nil {
			continue
		}
		res := Compare(ask, frame)
		nm := NearMiss{
			Index:           i,
			Ask:             ask.String(),
			Score:           res.Score,
			MaxScore:        res.Literals,
			MatchPercentage: res.Percentage(),
			Reason:          GenerateReason(res, ask.Len(), len(frame)),
		}
		switch {
		case res.LengthMismatch:
			byLength = append(byLength, nm)
		case res.Score > 0:
			candidates = append(candidates, nm)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].MatchPercentage > candidates[j].MatchPercentage
	})

	if len(candidates) == 0 {
		sort.SliceStable(byLength, func(i, j int) bool {
			return lengthDistance(asks[byLength[i].Index], frame) < lengthDistance(asks[byLength[j].Index], frame)
		})
		candidates = byLength
	}

	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

// GenerateReason explains why an ask did not accept a frame.
func GenerateReason(res MatchResult, askLen, frameLen int) string {
	switch {
	case res.LengthMismatch:
		return fmt.Sprintf("length expected %d, got %d", askLen, frameLen)
	case res.Matched:
		return "all literal bytes matched"
	case res.Score == 0:
		return fmt.Sprintf("byte %d expected 0x%02X, got 0x%02X", res.FirstMismatch, res.Expected, res.Actual)
	default:
		return fmt.Sprintf("%d/%d literal bytes matched, but byte %d expected 0x%02X, got 0x%02X",
			res.Score, res.Literals, res.FirstMismatch, res.Expected, res.Actual)
	}
}

func lengthDistance(ask *template.Template, frame []byte) int {
	d := ask.Len() - len(frame)
	if d < 0 {
		return -d
	}
	return d
}

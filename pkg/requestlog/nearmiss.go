package requestlog

// NearMissInfo is a log-friendly summary of an ask that almost matched.
// Stored on entries for unmatched frames.
type NearMissInfo struct {
	// Pair is the 1-based pair number in the repeat file.
	Pair int `json:"pair"`

	// Ask is the ask in delimited syntax.
	Ask string `json:"ask"`

	// MatchPercentage is how close the match was (0-100).
	MatchPercentage int `json:"matchPercentage"`

	// Reason is a human-readable explanation of the first difference.
	Reason string `json:"reason"`
}

// Package matching compares incoming frames against ask templates.
//
// Equality follows the wildcard rule of package template: same length, and
// literal bytes equal wherever both sides are literal. Variable and function
// slots of an ask match any incoming byte.
//
// When nothing matches, CollectNearMisses ranks the stored asks by how many
// of their literal bytes the frame got right, so an "unknown ask" log line
// can point at the closest candidate and the first differing byte.
//
// Key types:
//
//   - MatchResult: per-position breakdown of one ask against one frame
//   - NearMiss: a ranked, partially matching ask with a readable reason
package matching

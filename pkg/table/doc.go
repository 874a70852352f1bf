// Package table holds the ask/answer pattern table and synthesizes answers.
//
// A Table is an ordered list of (ask, answer) template pairs. Lookup wraps
// the incoming frame as a literal-only template, scans the asks in insertion
// order and synthesizes the answer of the first one that matches under the
// wildcard rule of package template. Tables hold tens of entries, so the scan
// is linear.
//
// Synthesis walks the answer template position by position:
//
//   - literal: copied
//   - variable $N: the incoming byte at the position where the ask captured
//     $N, or 0 when the ask has no $N
//   - function origin: computed over the answer bytes produced so far
//   - function continuation: left to the origin
//
// Table is safe for concurrent use. Replace swaps the whole content under the
// write lock, and Lookup holds the read lock through matching and synthesis,
// so a lookup sees either the old table or the new one, never a mix.
package table

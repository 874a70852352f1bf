// Package template parses ask and answer lines of a repeat file into
// Templates: fixed-length sequences of compact tokens describing one byte
// each.
//
// # Grammars
//
// Delimited (whitespace separated):
//
//	0x10 0x58 $1 0x5B 0x16
//	0x68 $1 0x00 @sum[3..] 0x16
//
// Each field is one of:
//
//   - 0xH or 0xHH - literal byte
//   - $N          - variable N (0-255); captures a byte on the ask side and
//     replays it on the answer side
//   - @name       - function slot, see package function
//   - @name[a..b] - function slot covering a byte range; both bounds optional
//
// Contiguous hex, two characters per byte, no variables or functions:
//
//	10585B16
//
// A third, ASCII grammar exists at the repeat-file level only; such lines are
// compared as plain strings and never become Templates.
//
// # Token encoding
//
// Each position is a 16-bit Token:
//
//	0x00XX          literal byte XX
//	0x01NN          variable NN            (bit 0x100)
//	0x0200          function origin        (bit 0x200, offset 0)
//	0x0201..0x02FF  function continuation  (bit 0x200, offset 1..255)
//
// A function writing several bytes occupies one origin slot followed by
// continuation slots; only the origin carries the function instance.
//
// # Matching
//
// Two templates match when they have the same length and every position
// where both tokens are literals holds the same byte. Variable and function
// positions match anything, which lets an ask template act as a pattern for
// incoming literal-only buffers.
package template

// Package repeatfile loads repeat files: text files of alternating ask and
// answer lines that drive the repeater.
//
// The grammar of the whole file is decided by its first data line:
//
//	0x10 0x58 $1 0x5B 0x16        delimited hex
//	105803                        contiguous hex
//	AT+GMR                        anything else is ASCII
//
// Blank lines and lines starting with '#' are skipped. In the hex grammars
// every data line must use the grammar of the first one, and each line is
// parsed into a template. In ASCII mode lines are kept verbatim and matched
// by string equality.
//
// Loading is all or nothing. A malformed line, a duplicate ask or a trailing
// ask without an answer fails the whole file with a *LineError naming the
// 1-based line.
package repeatfile

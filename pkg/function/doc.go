// Package function implements the built-in functions that can fill computed
// slots of an answer template.
//
// # Functions
//
// The set is closed:
//   - @sum   - 8-bit sum of the covered bytes (1 byte)
//   - @crc8  - CRC-8, polynomial 0x07, initial value 0x00 (1 byte)
//   - @crc16 - CRC-16/MODBUS, reflected polynomial 0xA001, initial value 0xFFFF,
//     written low byte first (2 bytes)
//   - @rand  - uniformly random byte (1 byte)
//
// # Ranges
//
// Every function may carry a byte range suffix, for example @sum[3..] or
// @rand[40..130]. Either bound may be omitted: a missing left bound means 0 and
// a missing right bound means "up to the byte before the function". For the
// checksum functions the range selects the covered bytes and is always clipped
// so a function never reads its own output slot. For @rand the range is the
// inclusive value interval, clipped to [0, 255].
//
// # Randomness
//
// Compute takes an optional *rand.Rand. A nil source uses the global
// math/rand/v2 generator; a seeded source makes @rand output reproducible.
package function

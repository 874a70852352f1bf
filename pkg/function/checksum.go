package function

// Sum8 returns the sum of data modulo 256.
func Sum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// CRC8 computes CRC-8 with polynomial 0x07 and initial value 0x00.
// The register is kept 16 bits wide with the data byte in the high half,
// reducing by 0x1070<<3 (0x07 aligned under bit 15).
func CRC8(data []byte) byte {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc ^= 0x1070 << 3
			}
			crc <<= 1
		}
	}
	return byte(crc >> 8)
}

// CRC16 computes CRC-16/MODBUS: reflected polynomial 0xA001, initial value
// 0xFFFF, no final xor. On the wire the low byte goes first.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for range 8 {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// VerifyCRC8 reports whether the last byte of frame is the CRC8 of the rest.
// Frames shorter than 3 bytes never verify.
func VerifyCRC8(frame []byte) bool {
	n := len(frame)
	if n < 3 {
		return false
	}
	return CRC8(frame[:n-1]) == frame[n-1]
}

// VerifyCRC16 reports whether the last two bytes of frame hold the CRC16 of
// the rest, low byte first. Frames shorter than 3 bytes never verify.
func VerifyCRC16(frame []byte) bool {
	n := len(frame)
	if n < 3 {
		return false
	}
	crc := CRC16(frame[:n-2])
	return frame[n-2] == byte(crc) && frame[n-1] == byte(crc>>8)
}

// Package cli implements the serialmock command line.
//
// Commands:
//   - serve: load a repeat file and answer frames over TCP, WebSocket, MQTT, QUIC or a pty
//   - validate: check repeat files (globs allowed) and optionally a config file
//   - lookup: answer a single frame from a repeat file and explain misses
//   - checksum: print Sum, CRC8 and CRC16 of a hex frame
//   - chaos profiles: list the built-in fault profiles
//   - cert: write a self-signed TLS certificate
//   - init: create a starter config file
//   - version: show build information
//
// Usage:
//
//	serialmock serve -c serialmock.yaml
//	serialmock serve --repeat-file device.txt --tcp :7000 --ws :7001 --watch
//	serialmock validate 'protocols/**/*.txt'
//	serialmock lookup -r device.txt "0x10 0x58 0xFC 0x5B 0x16"
//	serialmock checksum 01 03 00 00 00 0A
//	serialmock init -i
package cli

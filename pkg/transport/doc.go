// Package transport carries frames between clients and the repeater.
//
// Every transport implements Handler and hands each received frame to a
// Responder. An answered frame is written back on the same connection (TCP,
// WebSocket, QUIC stream, pseudo-terminal) or published on the response
// topic (MQTT); an unknown ask is dropped, the way a device ignores a request
// it does not understand.
//
// Byte streams have no message boundaries, so TCP, QUIC and the
// pseudo-terminal split them on idle gaps: bytes that arrive less than
// GapTolerance apart belong to one frame.
package transport

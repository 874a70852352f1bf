// Package requestlog keeps a history of exchanged frames for inspection.
//
// It is distinct from operational logging (log/slog): entries are kept in
// memory so the /frames endpoint and the live stream can show what arrived,
// whether it matched and what was answered.
//
//	store := requestlog.NewMemoryStore(1000)
//	store.Log(&requestlog.Entry{
//	    Transport: requestlog.TransportTCP,
//	    Conn:      "tcp-1a2b3c4d",
//	    Frame:     "10 58 FC 5B 16",
//	})
//	misses := store.List(&requestlog.Filter{Matched: ptr(false)})
package requestlog

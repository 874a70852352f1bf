// Package id generates identifiers for transport connections and reloads.
//
// UUID returns a random RFC 4122 v4 identifier. Short returns its first
// eight hex characters, which is what appears in log lines.
package id

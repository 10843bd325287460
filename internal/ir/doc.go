// Package ir provides the canonical encodings shared by the query layers.
//
// Query descriptions are ordered documents: the key order a caller wrote is
// part of their identity, both for display and for cache keys. This package
// renders such documents as compact JSON with a stable, reproducible byte
// form and derives domain-separated hashes from that form.
//
// ir imports nothing internal.
package ir

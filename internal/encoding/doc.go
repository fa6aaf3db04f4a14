// Package encoding provides column codecs:
//   - delta encoding for the timestamp column, at the narrowest signed
//     byte width that holds every delta in the column
//   - run-length encoding for the value column, merging only bit-exact
//     equal neighbors
//   - a raw float64 column codec as the uncompressed fallback
//   - a Gorilla XOR float codec, kept as an optional alternative value
//     codec reachable by callers who select it explicitly
//
// Chunk serialization in the parent package writes raw timestamp and
// value columns and calls none of these codecs.
//
// It also provides the length-prefixed string and tag-map framing shared
// by the write-ahead log and chunk file formats.
package encoding

// Package manifest writes the HLS master playlist that ties the encoded
// variants together for adaptive-bitrate playback.
//
// Only successful variants are listed. Entries are ordered by ascending
// bandwidth, then height, then name, so rebuilding from the same results
// produces byte-identical output.
package manifest

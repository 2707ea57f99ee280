// ABOUTME: Audio decoder package for raw PCM payloads
// ABOUTME: Provides the PCM function and a Decoder bound to a negotiated format
// Package decode converts raw interleaved PCM into normalized per-channel floats.
//
// Supports: signed 16-bit little-endian and 32-bit little-endian float.
// Any other bit depth/encoding combination decodes to silence.
//
// Example:
//
//	buf := decode.PCM(raw, format)
//	left := buf.Channels[0]
package decode

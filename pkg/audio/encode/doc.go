// ABOUTME: Audio encoder package for raw PCM payloads
// ABOUTME: Interleaves per-channel float buffers into s16le or f32le bytes
// Package encode is the inverse of package decode.
//
// Supports: signed 16-bit little-endian and 32-bit little-endian float.
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	data, err := encoder.Encode(buf)
package encode

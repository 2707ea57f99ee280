// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides the audio types shared by the tempostream client and server.
//
// This package defines:
//   - Format: the PCM format negotiated during the handshake (channels, rate, depth, encoding)
//   - Buffer: decoded audio as per-channel normalized float32 samples
//
// It also provides sample conversions between signed 16-bit integers and
// normalized floats.
//
// Example:
//
//	format := audio.Format{
//	    Channels:   2,
//	    SampleRate: 48000,
//	    BitDepth:   16,
//	    Encoding:   audio.EncodingS16LE,
//	}
//
//	frames := format.Frames(len(raw))
package audio

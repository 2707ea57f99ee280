// ABOUTME: Tempostream wire protocol package
// ABOUTME: Provides handshake parsing, frame codec, and WebSocket transport
// Package protocol implements the tempostream wire protocol.
//
// A session runs in four steps:
//  1. client sends the text token "open"
//  2. server sends "<channels> <sampleRate> <bitsPerSample> <pcmFormat>"
//  3. client sends the text token "accept"
//  4. server streams MessagePack frames {tempo, audio, timestamp} as binary messages
//
// Client is a gorilla/websocket transport that reports everything it sees as
// Events, leaving protocol decisions to the caller.
package protocol

// Package lavakit is a Lavalink client: it connects a chat-bot process to
// one or more Lavalink audio-streaming servers and exposes per-guild music
// players.
//
// Three pieces do the work. A [Node] is one WebSocket+REST connection to a
// Lavalink server, with a bounded reconnection loop and resumable sessions.
// A [Manager] owns a pool of Nodes and a set of Players, routes work to the
// least-loaded Node, and demultiplexes voice-gateway events. A [Player] is a
// per-guild audio session: queue, loop mode, voice-channel choreography
// (including stage channels), and translation of server-side track events
// into client-visible events.
//
// lavakit never talks to the chat gateway directly. Embedders supply a
// [ChatAdapter]; see the adapter/discordgo subpackage for a ready-made one
// built on discordgo.
package lavakit

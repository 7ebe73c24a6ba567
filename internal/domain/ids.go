// Package domain contains entity types without logic, just meta-data.
package domain

type (
	// PeerID identifies one connected client for the lifetime of its
	// connection. Not persisted.
	PeerID string

	// RoomID identifies a signal-relay room. Rooms are created implicitly
	// on first join.
	RoomID string
)

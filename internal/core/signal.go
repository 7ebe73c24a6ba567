package core

// Frame is a raw outbound payload, already serialized.
type Frame []byte

// SignalConnection abstracts the messaging transport of one peer.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Package saved persists the latest value of a stream under a key.
//
// A Store holds encoded values by key; MemoryStore and FileStore are the
// bundled implementations. A Handle adds a Codec and an optional key
// namespace on top of a Store and offers typed access through Get and Set.
//
// StateIn turns a source into a hot state whose every value is written to
// the store before it is published, and whose initial value comes from the
// store when one was saved:
//
//	h := saved.NewHandle(store)
//	counter, err := saved.StateIn(scope, h, "counter", ticks, 0)
//
// MutableStateIn is the settable variant: Set writes first and publishes
// only once the write succeeded.
package saved

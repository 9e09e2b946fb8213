// Package signal implements the per-instance Signal Store: named channels
// of ordered signals, with the two-phase val/final_val discipline that
// isolates a model's own writes from its own reads within one tick.
package signal

import "fmt"

type (
	// Signal is one named scalar/binary value within a Channel.
	//
	// Invariants: len(Bin) <= cap(Bin) always; a length of 0 means
	// "consumed / empty". Val and FinalVal are deliberately kept as two
	// distinct fields, not collapsed, because the read/write separation
	// across the bus rendezvous is an observable property under test.
	Signal struct {
		Name string
		// Val is the value visible to models: the adapter writes it when a
		// Ready rendezvous delivers a round, and the adapter->model
		// marshaling phase copies it into the models.
		Val float64
		// FinalVal is the staging value written by models during a step
		// and published to the bus at the next ready rendezvous.
		FinalVal float64
		// Bin is the authoritative binary payload. Its length is the
		// current size; capacity is retained across resets for reuse.
		Bin []byte
	}

	// Channel is a named, ordered set of Signals. Insertion order defines
	// "signal index" and is stable for the channel's lifetime.
	Channel struct {
		Name string

		index map[string]int
		names []string
		sigs  []*Signal
	}

	// MapEntry aligns one queried signal name to its authoritative Signal.
	MapEntry struct {
		Name   string
		Signal *Signal
	}

	// Map is a transient, index-aligned view produced by Store.SignalMap
	// for a (channel, signal_names[]) query.
	Map []MapEntry

	// Store is the per-instance set of named Channels.
	Store struct {
		channels map[string]*Channel
		order    []string
	}
)

// AppendBin grows sig.Bin as needed and appends p. Capacity only ever
// grows across calls, even across intervening ResetBin calls, so a reader
// that lags a few ticks behind never forces a reallocation mid-catch-up.
func (sig *Signal) AppendBin(p []byte) {
	size := len(sig.Bin)
	need := size + len(p)
	if cap(sig.Bin) < need {
		grown := make([]byte, need)
		copy(grown, sig.Bin)
		sig.Bin = grown
	} else {
		sig.Bin = sig.Bin[:need]
	}
	copy(sig.Bin[size:need], p)
}

// ResetBin marks the binary payload as consumed without releasing its
// underlying capacity.
func (sig *Signal) ResetBin() {
	sig.Bin = sig.Bin[:0]
}

// NewStore returns an empty, ready-to-use Store.
func NewStore() *Store {
	return &Store{channels: make(map[string]*Channel)}
}

// InitChannel idempotently creates channelName (if absent) and ensures each
// of signalNames exists within it, in the given order. Repeated calls with
// the same names are a no-op.
func (s *Store) InitChannel(channelName string, signalNames []string) *Channel {
	ch, ok := s.channels[channelName]
	if !ok {
		ch = &Channel{Name: channelName, index: make(map[string]int)}
		s.channels[channelName] = ch
		s.order = append(s.order, channelName)
	}
	for _, name := range signalNames {
		ch.ensure(name)
	}
	return ch
}

// Channel returns the named channel, or nil if it was never initialized.
func (s *Store) Channel(name string) *Channel {
	return s.channels[name]
}

// Channels returns channel names in creation order.
func (s *Store) Channels() []string {
	return append([]string(nil), s.order...)
}

// Adopt installs ch as the channel registered under name, replacing
// whatever was there. It exists for adapters that mirror a channel shared
// across several per-instance Stores by reference (e.g. an in-process bus
// fanning values out to every subscriber without a network hop) rather
// than by copying values across a wire.
func (s *Store) Adopt(name string, ch *Channel) {
	if _, ok := s.channels[name]; !ok {
		s.order = append(s.order, name)
	}
	s.channels[name] = ch
}

// SignalMap builds a Map aligning names to the authoritative Signals of
// channelName. Lookup cost is O(len(names)). channelName must already be
// initialized; an unknown signal name is an error (the caller declared its
// channel bindings during Create and every name must have been part of
// that declaration).
func (s *Store) SignalMap(channelName string, names []string) (Map, error) {
	ch, ok := s.channels[channelName]
	if !ok {
		return nil, fmt.Errorf("signal: channel %q not initialized", channelName)
	}
	out := make(Map, len(names))
	for i, name := range names {
		sig := ch.get(name)
		if sig == nil {
			return nil, fmt.Errorf("signal: channel %q has no signal %q", channelName, name)
		}
		out[i] = MapEntry{Name: name, Signal: sig}
	}
	return out, nil
}

// ensure idempotently creates a signal by name, returning the existing one
// if already present.
func (c *Channel) ensure(name string) *Signal {
	if i, ok := c.index[name]; ok {
		return c.sigs[i]
	}
	sig := &Signal{Name: name}
	c.index[name] = len(c.names)
	c.names = append(c.names, name)
	c.sigs = append(c.sigs, sig)
	return sig
}

// get returns the named signal, or nil if absent.
func (c *Channel) get(name string) *Signal {
	if i, ok := c.index[name]; ok {
		return c.sigs[i]
	}
	return nil
}

// Signals returns the channel's signals in insertion order.
func (c *Channel) Signals() []*Signal {
	return append([]*Signal(nil), c.sigs...)
}

// Names returns the channel's signal names in insertion order.
func (c *Channel) Names() []string {
	return append([]string(nil), c.names...)
}

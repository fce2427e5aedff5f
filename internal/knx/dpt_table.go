package knx

import "maps"

// DPTTable maps group addresses to datapoint types.
//
// A table is built once from configuration and never mutated, so it can
// be shared by any number of decoders without locking.
type DPTTable struct {
	entries map[GroupAddress]DPT
}

// NewDPTTable copies entries into a new immutable table.
func NewDPTTable(entries map[GroupAddress]DPT) *DPTTable {
	return &DPTTable{entries: maps.Clone(entries)}
}

// Get returns the configured type for ga, if any. A nil table has no
// entries.
func (t *DPTTable) Get(ga GroupAddress) (DPT, bool) {
	if t == nil {
		return "", false
	}
	d, ok := t.entries[ga]
	return d, ok
}

// Lookup returns the configured type for ga, or DefaultDPT.
func (t *DPTTable) Lookup(ga GroupAddress) DPT {
	if d, ok := t.Get(ga); ok {
		return d
	}
	return DefaultDPT
}

// Len returns the number of configured addresses.
func (t *DPTTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

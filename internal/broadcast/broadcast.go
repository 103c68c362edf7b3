// Package broadcast computes and applies the symmetric-difference delta
// between a worker's resident broadcast set and the set a task requires.
package broadcast

// Broadcast is an immutable, globally-identified blob shipped once per
// worker and cached there across reuses.
type Broadcast struct {
	ID      int64
	Payload []byte
}

// DeltaEntry is one entry of a broadcast delta: either a registration
// (Register true, Payload carrying the blob) or a deregistration (Register
// false, Payload nil).
type DeltaEntry struct {
	ID       int64
	Register bool
	Payload  []byte
}

// EncodeID encodes a deregistration of id as −id−1. Registrations are
// encoded as the id itself.
func EncodeID(id int64, register bool) int64 {
	if register {
		return id
	}
	return -id - 1
}

// DecodeID reverses EncodeID, returning the original id and whether the
// wire value denoted a registration.
func DecodeID(wire int64) (id int64, register bool) {
	if wire < 0 {
		return -wire - 1, false
	}
	return wire, true
}

// Delta computes the symmetric-difference delta between the resident set
// old and the broadcasts the task requires (new). Entries for old\new are
// deregistrations; entries for new\old are registrations. old is mutated in
// place to equal new's identifier set: deregistered ids are
// removed and registered ids are inserted as the delta is built.
func Delta(old map[int64]struct{}, want []Broadcast) []DeltaEntry {
	wantIDs := make(map[int64]struct{}, len(want))
	for _, b := range want {
		wantIDs[b.ID] = struct{}{}
	}

	var entries []DeltaEntry
	for id := range old {
		if _, ok := wantIDs[id]; !ok {
			entries = append(entries, DeltaEntry{ID: id, Register: false})
			delete(old, id)
		}
	}
	for _, b := range want {
		if _, ok := old[b.ID]; !ok {
			entries = append(entries, DeltaEntry{ID: b.ID, Register: true, Payload: b.Payload})
			old[b.ID] = struct{}{}
		}
	}
	return entries
}

// Apply replays one delta wire id — as read off the wire — against a
// resident set, mutating it to reflect that entry. It is
// the reader-side counterpart used by tests to verify Delta's correctness
// without a live worker.
func Apply(set map[int64]struct{}, wireID int64) {
	id, register := DecodeID(wireID)
	if register {
		set[id] = struct{}{}
	} else {
		delete(set, id)
	}
}

package tuio

// ChangeLog lists the keys touched during one drain cycle, grouped by update kind.
// Every list is deduplicated and keeps first-touch order.
type ChangeLog struct {
	Bounds   []PatternKey
	Symbols  []PatternKey
	Pointers []PointerKey
	Data     []PointerKey
	// Evicted keys are reported separately: they are never part of the update lists of the same cycle.
	EvictedPatterns []PatternKey
	EvictedPointers []PointerKey
}

// IsEmpty returns true if nothing changed
func (log *ChangeLog) IsEmpty() bool {
	return len(log.Bounds) == 0 && len(log.Symbols) == 0 && len(log.Pointers) == 0 && len(log.Data) == 0 &&
		len(log.EvictedPatterns) == 0 && len(log.EvictedPointers) == 0
}

// ChangedPatterns returns union of bnd and sym keys in first-touch order
func (log *ChangeLog) ChangedPatterns() []PatternKey {
	return appendUnique(appendUnique(nil, log.Bounds...), log.Symbols...)
}

// ChangedPointers returns union of ptr and dat keys in first-touch order
func (log *ChangeLog) ChangedPointers() []PointerKey {
	return appendUnique(appendUnique(nil, log.Pointers...), log.Data...)
}

func (log *ChangeLog) markBounds(key PatternKey) {
	log.Bounds = appendUnique(log.Bounds, key)
}

func (log *ChangeLog) markSymbol(key PatternKey) {
	log.Symbols = appendUnique(log.Symbols, key)
}

func (log *ChangeLog) markPointer(key PointerKey) {
	log.Pointers = appendUnique(log.Pointers, key)
}

func (log *ChangeLog) markData(key PointerKey) {
	log.Data = appendUnique(log.Data, key)
}

// appendUnique appends keys not present in list yet. Lists are small (elements on one surface).
func appendUnique[K comparable](list []K, keys ...K) []K {
	for _, key := range keys {
		found := false
		for _, existing := range list {
			if existing == key {
				found = true
				break
			}
		}
		if !found {
			list = append(list, key)
		}
	}
	return list
}

// Package diff compares environment mappings structurally.
package diff

import "sort"

// Change describes a key present on both sides with different values.
type Change struct {
	Key    string
	Before string
	After  string
}

// Result is the outcome of comparing a stored mapping (a) with a live one (b).
// Added holds keys only present in b, Removed keys only present in a.
type Result struct {
	Added   []string
	Removed []string
	Changed []Change
}

// Equal reports whether the two compared mappings had the same keys and values.
func (r Result) Equal() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Keys returns every key that differs, sorted.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r.Added)+len(r.Removed)+len(r.Changed))
	keys = append(keys, r.Added...)
	keys = append(keys, r.Removed...)
	for _, c := range r.Changed {
		keys = append(keys, c.Key)
	}
	sort.Strings(keys)
	return keys
}

// Compare diffs two mappings. A nil map is treated as empty.
func Compare(a, b map[string]string) Result {
	var res Result
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			res.Removed = append(res.Removed, key)
			continue
		}
		if av != bv {
			res.Changed = append(res.Changed, Change{Key: key, Before: av, After: bv})
		}
	}
	for key := range b {
		if _, ok := a[key]; !ok {
			res.Added = append(res.Added, key)
		}
	}
	sort.Strings(res.Added)
	sort.Strings(res.Removed)
	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i].Key < res.Changed[j].Key })
	return res
}

package graphname

import "sort"

// Timeline is an ascending list of parsed graph names. It is derived from a
// store query for the duration of one operation and never cached.
type Timeline []Parsed

// BuildTimeline parses names, drops the malformed ones (returned so the
// caller can log them) and sorts the rest by timestamp. Ties order by role
// (base, added, removed, temp, legacy) and then by name.
func BuildTimeline(names []string) (Timeline, []*MalformedNameError) {
	var (
		tl  = make(Timeline, 0, len(names))
		bad []*MalformedNameError
	)
	for _, n := range names {
		p, err := Parse(n)
		if err != nil {
			bad = append(bad, err.(*MalformedNameError))
			continue
		}
		tl = append(tl, p)
	}
	sort.SliceStable(tl, func(i, j int) bool {
		a, b := tl[i], tl[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.Role.rank() != b.Role.rank() {
			return a.Role.rank() < b.Role.rank()
		}
		return a.Name < b.Name
	})
	return tl, bad
}

func (tl Timeline) Empty() bool { return len(tl) == 0 }

// ForPrefix keeps only entries rooted exactly at prefix.
func (tl Timeline) ForPrefix(prefix string) Timeline {
	want := NormalizePrefix(prefix)
	out := make(Timeline, 0, len(tl))
	for _, p := range tl {
		if p.Prefix == want {
			out = append(out, p)
		}
	}
	return out
}

// Latest returns the newest entry with the given role.
func (tl Timeline) Latest(role Role) (Parsed, bool) {
	for i := len(tl) - 1; i >= 0; i-- {
		if tl[i].Role == role {
			return tl[i], true
		}
	}
	return Parsed{}, false
}

// WithRole returns every entry with the given role, oldest first.
func (tl Timeline) WithRole(role Role) Timeline {
	var out Timeline
	for _, p := range tl {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// Before returns the entries whose timestamp is strictly less than cutoff.
func (tl Timeline) Before(cutoff int64) Timeline {
	var out Timeline
	for _, p := range tl {
		if p.Timestamp < cutoff {
			out = append(out, p)
		}
	}
	return out
}

// Names returns the graph names in timeline order.
func (tl Timeline) Names() []Name {
	out := make([]Name, len(tl))
	for i, p := range tl {
		out[i] = p.Name
	}
	return out
}

// Older returns the entries with the given role whose timestamp is strictly
// less than ts, oldest first.
func (tl Timeline) Older(role Role, ts int64) Timeline {
	var out Timeline
	for _, p := range tl {
		if p.Role == role && p.Timestamp < ts {
			out = append(out, p)
		}
	}
	return out
}

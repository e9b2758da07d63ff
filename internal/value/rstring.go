package value

// RStr is muna's dual-form string representation: lengths up to 16
// bytes live inline in `small`, avoiding a heap allocation for the
// overwhelming majority of identifiers and short literals; longer
// strings are boxed. Equality and hashing are always by content —
// the two forms are indistinguishable to a caller comparing Values,
// and only IsSmall tells them apart.
type RStr struct {
	small [16]byte
	n     int
	large *[]byte
}

// NewRStr builds an RStr from s, choosing the inline or boxed form by
// length.
func NewRStr(s string) RStr {
	if len(s) <= 16 {
		var r RStr
		copy(r.small[:], s)
		r.n = len(s)
		return r
	}
	b := []byte(s)
	return RStr{n: len(s), large: &b}
}

// IsSmall reports whether r uses the inline form.
func (r RStr) IsSmall() bool { return r.large == nil }

// Len returns the byte length.
func (r RStr) Len() int { return r.n }

// Bytes returns r's content. The returned slice aliases the large
// form's backing array; callers must not mutate it — strings are
// immutable.
func (r RStr) Bytes() []byte {
	if r.large != nil {
		return *r.large
	}
	return r.small[:r.n]
}

// String returns r's content as a Go string.
func (r RStr) String() string { return string(r.Bytes()) }

// Equal compares two RStr values by byte content.
func (r RStr) Equal(other RStr) bool {
	if r.n != other.n {
		return false
	}
	ra, rb := r.Bytes(), other.Bytes()
	for i := range ra {
		if ra[i] != rb[i] {
			return false
		}
	}
	return true
}

// hashFNV1a computes a content hash suitable for use as a map key
// component; muna never interns strings (see DESIGN.md). Table lookups
// do not call it: a string Key holds the Go string itself (see KeyOf).
func hashFNV1a(b []byte) uint64 {
	const offset, prime = 14695981039346656037, 1099511628211
	h := uint64(offset)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	return h
}

// Hash returns r's content hash.
func (r RStr) Hash() uint64 { return hashFNV1a(r.Bytes()) }

package tagcache

// AsBytes converts a payload value to the native byte representation stored
// by the distributed backend. For byte-slice shapes the result shares the
// value's backing array.
func AsBytes[V Value](v V) []byte {
	return []byte(v)
}

// FromBytes converts a stored native byte slice back into the payload shape
// V. The conversion is total for every shape in the closed set.
func FromBytes[V Value](b []byte) V {
	return V(b)
}

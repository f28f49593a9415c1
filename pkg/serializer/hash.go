package serializer

import "math"

// djb2 computes Dan Bernstein's string hash (XOR variant) over one or more
// strings folded into a single running value, combining a Call-ID with a
// tag. The intermediate value is kept in a 32-bit signed integer so bucket
// assignment is stable across platforms.
func djb2(parts ...string) int32 {
	var h int32 = 5381
	for _, s := range parts {
		for i := 0; i < len(s); i++ {
			h = h*33 ^ int32(s[i])
		}
	}
	return h
}

// Bucket hashes parts with djb2 and returns abs(hash) mod poolSize. No case
// folding or normalization is applied; strings are hashed by their exact
// byte content.
func Bucket(poolSize int, parts ...string) int {
	if poolSize <= 0 {
		return 0
	}
	h := djb2(parts...)
	if h < 0 {
		if h == math.MinInt32 {
			h = 0
		} else {
			h = -h
		}
	}
	return int(h) % poolSize
}

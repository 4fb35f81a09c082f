package card

// compactIndex encodes the small non-negative integers the v2/v3 wire
// formats use for table positions (file/symbol/edge-type indices) as
// short base-63 strings rather than decimal, shaving a few bytes per
// reference across a large slice. Adapted from the teacher's
// internal/encoding/base63.go algorithm (alphabet and digit order kept
// identical so encoded values stay directly comparable across this
// module and the teacher's, though nothing here consumes teacher-encoded
// values); renamed and re-scoped to table positions rather than opaque
// entity IDs.
const compactAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"

const compactBase = 63

func encodeCompactIndex(n int) string {
	if n < 0 {
		panic("card: encodeCompactIndex: negative index")
	}
	if n == 0 {
		return "A"
	}
	v := uint64(n)
	var buf [11]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = compactAlphabet[v%compactBase]
		v /= compactBase
	}
	return string(buf[pos:])
}

func decodeCompactIndex(s string) (int, error) {
	if s == "" {
		return 0, errEmptyIndex
	}
	var v uint64
	for _, c := range s {
		d, err := compactCharValue(c)
		if err != nil {
			return 0, err
		}
		v = v*compactBase + d
	}
	return int(v), nil
}

func compactCharValue(c rune) (uint64, error) {
	switch {
	case c >= 'A' && c <= 'Z':
		return uint64(c - 'A'), nil
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 26, nil
	case c >= '0' && c <= '9':
		return uint64(c-'0') + 52, nil
	case c == '_':
		return 62, nil
	default:
		return 0, errInvalidIndexChar
	}
}

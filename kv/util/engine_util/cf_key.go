package engine_util

const (
	CfDefault string = "default"
	CfWrite   string = "write"
	CfLock    string = "lock"
)

// KeyWithCF builds the physical key of key in cf: the name length as one byte, the name, then the key.
// For a fixed cf the header is constant, so physical order equals logical order.
func KeyWithCF(cf string, key []byte) []byte {
	buf := make([]byte, 1+len(cf)+len(key))
	buf[0] = byte(len(cf))
	copy(buf[1:], cf)
	copy(buf[1+len(cf):], key)
	return buf
}

// CFPrefix is the smallest physical key of cf.
func CFPrefix(cf string) []byte {
	return KeyWithCF(cf, nil)
}

// CFUpperBound is the exclusive end of the physical range of cf.
func CFUpperBound(cf string) []byte {
	return prefixSuccessor(CFPrefix(cf))
}

// DecodeCFKey splits a physical key. ok is false for keys not produced by KeyWithCF.
func DecodeCFKey(physical []byte) (cf string, key []byte, ok bool) {
	if len(physical) == 0 {
		return "", nil, false
	}
	n := int(physical[0])
	if n == 0 || len(physical) < 1+n {
		return "", nil, false
	}
	return string(physical[1 : 1+n]), physical[1+n:], true
}

// prefixSuccessor returns the smallest key greater than every key starting with prefix, or nil if
// there is none.
func prefixSuccessor(prefix []byte) []byte {
	succ := append([]byte(nil), prefix...)
	for i := len(succ) - 1; i >= 0; i-- {
		if succ[i] != 0xff {
			succ[i]++
			return succ[:i+1]
		}
	}
	return nil
}

package memory

import "runtime"

// SecureZeroBytes overwrites b so secrets do not linger after use.
func SecureZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

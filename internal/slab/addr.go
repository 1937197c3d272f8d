package slab

import "unsafe"

// addrOf returns the address of a byte slice's backing array, used for
// pointer-range containment checks.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

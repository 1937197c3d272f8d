// Package bytesconv provides zero-allocation byte/string conversions used
// to turn arena-backed StringViews into strings at the boundary with code
// that only accepts string (such as the parser's strconv numeric
// pre-parse) without copying. Values handed to the storage facade are
// copied instead, since the facade retains them past the request.
package bytesconv

import "unsafe"

// BytesToString converts a []byte to a string without allocation. The
// returned string shares memory with b.
//
// The caller must not mutate b after this call, and if b is arena-backed,
// the returned string is only valid until the arena is reset.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBytes converts a string to []byte without allocation. The
// returned slice shares memory with s and must not be written to.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

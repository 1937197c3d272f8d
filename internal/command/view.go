package command

import "github.com/kvsrv/kvsrv/pkg/bytesconv"

// StringView is a non-owning reference into either the parsed input line
// (bare and escape-free quoted tokens) or arena memory (quoted tokens
// with escapes). It is valid only while that line is unchanged and until
// the arena that produced it is reset.
type StringView struct {
	data []byte
}

func viewOf(b []byte) StringView { return StringView{data: b} }

// Bytes returns the view's underlying bytes. The returned slice aliases
// the input line or arena memory and must not be retained past the
// request.
func (v StringView) Bytes() []byte { return v.data }

// String returns the view's bytes as a string via an unsafe, allocation
// free conversion. The same lifetime rule as Bytes applies.
func (v StringView) String() string { return bytesconv.BytesToString(v.data) }

// Len returns the view's length in bytes.
func (v StringView) Len() int { return len(v.data) }

// Empty reports whether the view has zero length.
func (v StringView) Empty() bool { return len(v.data) == 0 }

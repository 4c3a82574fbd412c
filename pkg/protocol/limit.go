package protocol

import (
	"io"

	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
)

// LimitPolicy decides what happens when a stream exceeds its byte ceiling.
type LimitPolicy int

const (
	// FailOnExceed aborts the read with BAD_REQUEST naming the limit.
	FailOnExceed LimitPolicy = iota
	// TruncateOnExceed keeps the first maxBytes, drains the remainder
	// without buffering it, and reports truncation.
	TruncateOnExceed
)

// ReadLimited reads r accumulating at most maxBytes. Retained memory
// never exceeds maxBytes (plus one probe byte) regardless of how much
// the producer sends. Under TruncateOnExceed the remainder is drained
// so the producer is never stalled mid-stream.
func ReadLimited(r io.Reader, maxBytes int64, policy LimitPolicy) (data []byte, truncated bool, err error) {
	if r == nil {
		return nil, false, nil
	}
	buf, err := io.ReadAll(io.LimitReader(r, maxBytes))
	if err != nil {
		return nil, false, fail.Internalf("reading stream: %v", err)
	}
	if int64(len(buf)) < maxBytes {
		return buf, false, nil
	}
	// Probe for a byte past the ceiling.
	var probe [1]byte
	n, perr := r.Read(probe[:])
	if n == 0 && (perr == io.EOF || perr == nil) {
		return buf, false, nil
	}
	if perr != nil && perr != io.EOF {
		return nil, false, fail.Internalf("reading stream: %v", perr)
	}
	switch policy {
	case TruncateOnExceed:
		if _, derr := io.Copy(io.Discard, r); derr != nil {
			return nil, false, fail.Internalf("draining stream: %v", derr)
		}
		return buf, true, nil
	default:
		return nil, false, fail.BadRequestf("body exceeds limit: >%d bytes", maxBytes).
			With("maxBytes", maxBytes)
	}
}

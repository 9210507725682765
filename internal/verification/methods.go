// Package verification drives the interactive verification handshake between
// two parties as an explicit finite state machine. The coordinator tracks
// sessions by flow ID; the actual sub-protocol cryptography beyond method
// negotiation (SAS comparison, QR reciprocation) is delegated to the caller
// via the helpers in sas.go and qr.go.
package verification

// Method is an interactive verification method identifier.
type Method string

const (
	MethodSAS         Method = "m.sas.v1"
	MethodQRShow      Method = "m.qr_code.show.v1"
	MethodQRScan      Method = "m.qr_code.scan.v1"
	MethodReciprocate Method = "m.reciprocate.v1"
)

// AllMethods returns every method this engine knows about.
func AllMethods() []Method {
	return []Method{MethodSAS, MethodQRShow, MethodQRScan, MethodReciprocate}
}

// negotiate returns the intersection of the two method sets, preserving the
// order of ours. Both sides must support a chosen method, so the sets are
// intersected rather than merged.
func negotiate(ours, theirs []Method) []Method {
	theirSet := make(map[Method]bool, len(theirs))
	for _, m := range theirs {
		theirSet[m] = true
	}
	var shared []Method
	for _, m := range ours {
		if theirSet[m] {
			shared = append(shared, m)
		}
	}
	return shared
}

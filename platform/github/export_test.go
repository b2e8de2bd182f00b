package github

// DecorateAcceptForTest exposes decorateAccept.
var DecorateAcceptForTest = decorateAccept

// DecodeRefsForTest exposes decodeRefs.
var DecodeRefsForTest = decodeRefs

// MergeStateNamesForTest walks the fallback chain from
// the initial state and returns the visited state names.
func MergeStateNamesForTest() []string {
	var names []string

	for s := mergeNotAttempted; ; s = mergeFallbacks[s] {
		names = append(names, s.String())
		if s == mergeExhausted {
			return names
		}
	}
}

package protocol

// Sequence numbers are 32 bit and wrap. They are only ever compared
// through the signed difference, which orders any two values less than
// 2^31 apart correctly.

// SequenceDiff returns a - b as a signed distance.
func SequenceDiff(a, b uint32) int32 {
	return int32(a - b)
}

// SequenceGreater reports whether a is newer than b.
func SequenceGreater(a, b uint32) bool {
	return SequenceDiff(a, b) > 0
}

// SequenceLess reports whether a is older than b.
func SequenceLess(a, b uint32) bool {
	return SequenceDiff(a, b) < 0
}

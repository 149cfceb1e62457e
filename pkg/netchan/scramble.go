package netchan

// ScrambleOffset is the number of leading payload bytes left readable by
// Scramble. They hold the reliable acknowledge, which peers inspect before
// the rest of the message.
const ScrambleOffset = 4

// Scramble XORs data past ScrambleOffset with a keystream derived from key.
// Applying it twice with the same key restores the input.
func Scramble(data []byte, key uint32) {
	if len(data) <= ScrambleOffset {
		return
	}
	k := key ^ 0x9E3779B9
	if k == 0 {
		k = 1
	}
	for i := ScrambleOffset; i < len(data); i++ {
		k ^= k << 13
		k ^= k >> 17
		k ^= k << 5
		data[i] ^= byte(k)
	}
}

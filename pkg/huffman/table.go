package huffman

import "sync"

var (
	defaultOnce  sync.Once
	defaultCodec *Codec
)

// Default returns the shared Codec built from DefaultFrequencies.
func Default() *Codec {
	defaultOnce.Do(func() {
		c, err := New(DefaultFrequencies())
		if err != nil {
			panic(err)
		}
		defaultCodec = c
	})
	return defaultCodec
}

// DefaultFrequencies returns the symbol weights used by Default. The table
// favours the text the server actually sends: lowercase words, digits, the
// terminator and the punctuation of info strings and console commands.
func DefaultFrequencies() [256]uint32 {
	var f [256]uint32
	for i := range f {
		f[i] = 1
	}
	for c := 0x20; c < 0x7f; c++ {
		f[c] = 40
	}

	const letters = "etaoinshrdlcumwfgypbvkjxqz"
	for i, c := range letters {
		w := uint32(900 - 30*i)
		f[c] = w
		f[c-'a'+'A'] = w / 6
	}
	for c := '0'; c <= '9'; c++ {
		f[c] = 300
	}

	f[0] = 1200
	f[' '] = 1500
	f['\\'] = 500
	f['"'] = 250
	f['\n'] = 200
	f['_'] = 120
	f['.'] = 150
	f['^'] = 90
	return f
}

package protocol

import (
	"errors"
	"strings"
)

// Info string errors.
var (
	ErrInfoInvalidChar = errors.New("protocol: info key or value contains an illegal character")
	ErrInfoTooLong     = errors.New("protocol: info string too long")
)

// Info is a key/value set serialized as "\key\value\key2\value2".
// Keys are case-insensitive on lookup and keep their insertion order.
type Info struct {
	pairs []infoPair
}

type infoPair struct {
	key, value string
}

// ParseInfo parses an info string. A trailing key without a value gets an
// empty value.
func ParseInfo(s string) Info {
	var info Info
	s = strings.TrimPrefix(s, `\`)
	if s == "" {
		return info
	}
	parts := strings.Split(s, `\`)
	for i := 0; i < len(parts); i += 2 {
		value := ""
		if i+1 < len(parts) {
			value = parts[i+1]
		}
		if parts[i] == "" {
			continue
		}
		info.setUnchecked(parts[i], value)
	}
	return info
}

// ValueForKey returns the value for key, or "" when absent.
func (in Info) ValueForKey(key string) string {
	for _, p := range in.pairs {
		if strings.EqualFold(p.key, key) {
			return p.value
		}
	}
	return ""
}

// Has reports whether key is present.
func (in Info) Has(key string) bool {
	for _, p := range in.pairs {
		if strings.EqualFold(p.key, key) {
			return true
		}
	}
	return false
}

// Set stores value under key, replacing any previous value. An empty value
// removes the key.
func (in *Info) Set(key, value string) error {
	if strings.ContainsAny(key, `\;"`) || strings.ContainsAny(value, `\;"`) {
		return ErrInfoInvalidChar
	}
	if value == "" {
		in.Remove(key)
		return nil
	}
	in.setUnchecked(key, value)
	if len(in.String()) >= MaxInfoString {
		in.Remove(key)
		return ErrInfoTooLong
	}
	return nil
}

func (in *Info) setUnchecked(key, value string) {
	for i := range in.pairs {
		if strings.EqualFold(in.pairs[i].key, key) {
			in.pairs[i].value = value
			return
		}
	}
	in.pairs = append(in.pairs, infoPair{key: key, value: value})
}

// Remove deletes key.
func (in *Info) Remove(key string) {
	for i := range in.pairs {
		if strings.EqualFold(in.pairs[i].key, key) {
			in.pairs = append(in.pairs[:i], in.pairs[i+1:]...)
			return
		}
	}
}

// Len returns the number of keys.
func (in Info) Len() int {
	return len(in.pairs)
}

// String serializes the info set.
func (in Info) String() string {
	var b strings.Builder
	for _, p := range in.pairs {
		b.WriteByte('\\')
		b.WriteString(p.key)
		b.WriteByte('\\')
		b.WriteString(p.value)
	}
	return b.String()
}

package session

import (
	"math/rand"
	"time"
)

const (
	keyTimeLayout = "2006-01-02 15:04:05.000000"
	keyLetters    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// DefaultKeySuffixLength is the number of random letters appended to
	// the creation timestamp.
	DefaultKeySuffixLength = 10
)

// newKey renders createdAt followed by n distinct letters sampled from
// [a-zA-Z]. It is not meant to be unguessable; the cookie signature is.
func newKey(createdAt time.Time, n int, intn func(int) int) string {
	if n > len(keyLetters) {
		n = len(keyLetters)
	}
	pool := []byte(keyLetters)
	buf := make([]byte, 0, len(keyTimeLayout)+n)
	buf = createdAt.UTC().AppendFormat(buf, keyTimeLayout)

	// Partial Fisher-Yates: the first n slots become the sample.
	for i := 0; i < n; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		buf = append(buf, pool[i])
	}
	return string(buf)
}

func defaultIntn(n int) int {
	return rand.Intn(n)
}

// KeyTime returns the creation time encoded at the start of key.
func KeyTime(key string) (time.Time, bool) {
	if len(key) < len(keyTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(keyTimeLayout, key[:len(keyTimeLayout)], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

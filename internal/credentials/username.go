package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Words for usernames of accounts created through a social login
var adjectives = []string{
	"quick", "clever", "bright", "brave", "steady", "sharp", "nimble", "curious",
	"bold", "calm", "eager", "keen", "lucky", "merry", "swift", "witty",
}

var nouns = []string{
	"adder", "divider", "counter", "abacus", "ruler", "compass", "prism", "vector",
	"decimal", "fraction", "integer", "matrix", "number", "square", "circle", "sum",
}

// GenerateUsername returns a random "adjective-noun-NNNN" username
func GenerateUsername() (string, error) {
	adjective, err := randomElement(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomElement(nouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", adjective, noun, n.Int64()), nil
}

// UsernameFromEmail derives a username candidate from the local part of an
// email address, keeping only characters usernames allow
func UsernameFromEmail(email string) string {
	local := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-', r == '+':
			b.WriteRune(r)
		}
	}
	if b.Len() < 3 {
		return ""
	}
	if b.Len() > 150 {
		return b.String()[:150]
	}
	return b.String()
}

// randomElement picks a random element from a string slice
func randomElement(slice []string) (string, error) {
	if len(slice) == 0 {
		return "", nil
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}

	return slice[num.Int64()], nil
}

package auth

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const TokenLength = 20

/*
Generates session tokens. A single TokenSource is shared by the whole process;
its generator is seeded once from the operating system and guarded by a
mutex.
*/
type TokenSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewTokenSource() *TokenSource {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(err)
	}
	return &TokenSource{
		rng: rand.New(rand.NewChaCha8(seed)),
	}
}

// Returns TokenLength random alphanumeric characters.
func (s *TokenSource) NewToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := make([]byte, TokenLength)
	for i := range token {
		token[i] = tokenAlphabet[s.rng.IntN(len(tokenAlphabet))]
	}
	return string(token)
}

// Package passwordhash implements the password hasher the command
// pipeline consumes (spec §6.2): hash(plaintext) -> hash,
// verify(plaintext, hash) -> bool. bcrypt is the ecosystem-standard
// choice for this concern (see DESIGN.md) and golang.org/x/crypto is
// already pulled in transitively by the teacher's dependency graph.
package passwordhash

import "golang.org/x/crypto/bcrypt"

// Hasher is the password-hashing interface consumed by internal/command.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Bcrypt is the default Hasher.
type Bcrypt struct {
	Cost int
}

// New returns a Bcrypt hasher with the default cost.
func New() Bcrypt {
	return Bcrypt{Cost: bcrypt.DefaultCost}
}

func (b Bcrypt) Hash(plaintext string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b Bcrypt) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

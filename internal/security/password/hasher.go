package password

import (
	"github.com/alexedwards/argon2id"
)

type Hasher struct {
	p Params
}

func NewHasher(p Params) *Hasher {
	if p.Memory == 0 {
		p = DefaultParams()
	}
	return &Hasher{p: p}
}

// Hash returns a PHC string like `$argon2id$v=19$m=65536,t=3,p=1$...`
func (h *Hasher) Hash(plain string) (string, error) {
	return argon2id.CreateHash(plain, &argon2id.Params{
		Memory:      h.p.Memory,
		Iterations:  h.p.Iterations,
		Parallelism: h.p.Parallelism,
		SaltLength:  h.p.SaltLength,
		KeyLength:   h.p.KeyLength,
	})
}

// Verify checks password vs PHC hash and also indicates if a rehash is recommended.
func (h *Hasher) Verify(plain, phc string) (ok bool, needsRehash bool, err error) {
	ok, err = argon2id.ComparePasswordAndHash(plain, phc)
	if err != nil || !ok {
		return ok, false, err
	}
	return ok, h.NeedsRehash(phc), nil
}

func (h *Hasher) NeedsRehash(phc string) bool {
	stored, _, _, err := argon2id.DecodeHash(phc)
	if err != nil {
		return true
	}
	return stored.Memory < h.p.Memory ||
		stored.Iterations < h.p.Iterations ||
		stored.Parallelism < h.p.Parallelism ||
		stored.SaltLength < h.p.SaltLength ||
		stored.KeyLength < h.p.KeyLength
}

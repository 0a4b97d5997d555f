package zmachine

import (
	"math/rand"
	"time"
)

// reseedRNG implements random's "N = 0" case: reseed from the current
// time, as DaveTCode's interpreter and the standard's "truly random"
// guidance both do.
func (z *ZMachine) reseedRNG() {
	z.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
}

// SeedRNG reseeds the random opcode's generator deterministically, for a
// host (cmd/gozm's --seed flag, a regression test) that needs reproducible
// playthroughs.
func (z *ZMachine) SeedRNG(seed int64) {
	z.rng = rand.New(rand.NewSource(seed))
}

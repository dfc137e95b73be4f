package ceremony

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"
)

// initialSRSBn254 builds the tau = 1 accumulator: every G1 power and the tau
// commitment in G2 are the group generators.
func initialSRSBn254(size uint64) *kzg_bn254.SRS {
	_, _, g1, g2 := bn254.Generators()
	var srs kzg_bn254.SRS
	srs.Pk.G1 = make([]bn254.G1Affine, size)
	for i := range srs.Pk.G1 {
		srs.Pk.G1[i] = g1
	}
	srs.Vk.G1 = g1
	srs.Vk.G2[0] = g2
	srs.Vk.G2[1] = g2
	return &srs
}

// contributeBn254 rescales the accumulator by the powers of secret:
// G1[i] *= secret^i and the G2 tau commitment by secret, preserving the
// powers-of-tau structure for the combined tau.
func contributeBn254(srs *kzg_bn254.SRS, secret *big.Int) {
	var s fr_bn254.Element
	s.SetBigInt(secret)
	pow := fr_bn254.One()
	var k big.Int
	for i := 1; i < len(srs.Pk.G1); i++ {
		pow.Mul(&pow, &s)
		pow.BigInt(&k)
		srs.Pk.G1[i].ScalarMultiplication(&srs.Pk.G1[i], &k)
	}
	srs.Vk.G2[1].ScalarMultiplication(&srs.Vk.G2[1], secret)
}

// checkBn254 verifies the accumulator structure: generators in place and
// G1 powers consistent with the tau committed in G2, via the pairing checks
// e(G1[i+1], g2) == e(G1[i], tau*g2) on the first and last power.
func checkBn254(srs *kzg_bn254.SRS) error {
	_, _, g1, g2 := bn254.Generators()
	if len(srs.Pk.G1) < 2 {
		return fmt.Errorf("accumulator too small")
	}
	if !srs.Pk.G1[0].Equal(&g1) {
		return fmt.Errorf("G1[0] is not the group generator")
	}
	if !srs.Vk.G2[0].Equal(&g2) {
		return fmt.Errorf("G2[0] is not the group generator")
	}
	last := len(srs.Pk.G1) - 1
	for _, i := range []int{0, last - 1} {
		left, err := bn254.Pair(
			[]bn254.G1Affine{srs.Pk.G1[i+1]}, []bn254.G2Affine{srs.Vk.G2[0]})
		if err != nil {
			return fmt.Errorf("pairing error: %v", err)
		}
		right, err := bn254.Pair(
			[]bn254.G1Affine{srs.Pk.G1[i]}, []bn254.G2Affine{srs.Vk.G2[1]})
		if err != nil {
			return fmt.Errorf("pairing error: %v", err)
		}
		if !left.Equal(&right) {
			return fmt.Errorf("inconsistent G1 powers at index %d", i)
		}
	}
	return nil
}

// cloneSRSBn254 copies the accumulator, G1 points included, so the copy is
// unaffected by later contributions to the original.
func cloneSRSBn254(srs *kzg_bn254.SRS) *kzg_bn254.SRS {
	clone := *srs
	clone.Pk.G1 = append([]bn254.G1Affine(nil), srs.Pk.G1...)
	return &clone
}

// accumulatorHashBn254 hashes the accumulator points that commit to tau
func accumulatorHashBn254(srs *kzg_bn254.SRS) [32]byte {
	h := sha256.New()
	g1 := srs.Pk.G1[1].RawBytes()
	h.Write(g1[:])
	g2 := srs.Vk.G2[1].RawBytes()
	h.Write(g2[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

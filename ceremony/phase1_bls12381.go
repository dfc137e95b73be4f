package ceremony

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	fr_bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	kzg_bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"
)

func initialSRSBls12381(size uint64) *kzg_bls12381.SRS {
	_, _, g1, g2 := bls12381.Generators()
	var srs kzg_bls12381.SRS
	srs.Pk.G1 = make([]bls12381.G1Affine, size)
	for i := range srs.Pk.G1 {
		srs.Pk.G1[i] = g1
	}
	srs.Vk.G1 = g1
	srs.Vk.G2[0] = g2
	srs.Vk.G2[1] = g2
	return &srs
}

func contributeBls12381(srs *kzg_bls12381.SRS, secret *big.Int) {
	var s fr_bls12381.Element
	s.SetBigInt(secret)
	pow := fr_bls12381.One()
	var k big.Int
	for i := 1; i < len(srs.Pk.G1); i++ {
		pow.Mul(&pow, &s)
		pow.BigInt(&k)
		srs.Pk.G1[i].ScalarMultiplication(&srs.Pk.G1[i], &k)
	}
	srs.Vk.G2[1].ScalarMultiplication(&srs.Vk.G2[1], secret)
}

func checkBls12381(srs *kzg_bls12381.SRS) error {
	_, _, g1, g2 := bls12381.Generators()
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
		left, err := bls12381.Pair(
			[]bls12381.G1Affine{srs.Pk.G1[i+1]},
			[]bls12381.G2Affine{srs.Vk.G2[0]})
		if err != nil {
			return fmt.Errorf("pairing error: %v", err)
		}
		right, err := bls12381.Pair(
			[]bls12381.G1Affine{srs.Pk.G1[i]},
			[]bls12381.G2Affine{srs.Vk.G2[1]})
		if err != nil {
			return fmt.Errorf("pairing error: %v", err)
		}
		if !left.Equal(&right) {
			return fmt.Errorf("inconsistent G1 powers at index %d", i)
		}
	}
	return nil
}

func cloneSRSBls12381(srs *kzg_bls12381.SRS) *kzg_bls12381.SRS {
	clone := *srs
	clone.Pk.G1 = append([]bls12381.G1Affine(nil), srs.Pk.G1...)
	return &clone
}

func accumulatorHashBls12381(srs *kzg_bls12381.SRS) [32]byte {
	h := sha256.New()
	g1 := srs.Pk.G1[1].RawBytes()
	h.Write(g1[:])
	g2 := srs.Vk.G2[1].RawBytes()
	h.Write(g2[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

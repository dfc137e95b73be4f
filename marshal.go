package zkbitcoin

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	plonk_bls12381 "github.com/consensys/gnark/backend/plonk/bls12-381"
	plonk_bn254 "github.com/consensys/gnark/backend/plonk/bn254"
	"github.com/consensys/gnark/backend/witness"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ProofJSON is the on-disk proof artifact: the gnark-encoded proof plus the
// flat calldata encoding external verifiers consume.
type ProofJSON struct {
	Protocol string        `json:"protocol"`
	Curve    string        `json:"curve"`
	Proof    hexutil.Bytes `json:"proof"`
	Calldata hexutil.Bytes `json:"calldata"`
}

// WriteProofJSON writes a proof to path as a JSON artifact.
func WriteProofJSON(path string, proof plonk.Proof, curve ecc.ID) error {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return fmt.Errorf("error encoding proof: %v", err)
	}
	out := ProofJSON{
		Protocol: "plonk",
		Curve:    curve.String(),
		Proof:    buf.Bytes(),
		Calldata: MarshalProofCalldata(proof),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling proof: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing proof file: %v", err)
	}
	return nil
}

// ReadProofJSON reads a proof artifact written by WriteProofJSON.
func ReadProofJSON(path string) (plonk.Proof, ecc.ID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ecc.UNKNOWN, fmt.Errorf("error reading proof file: %v", err)
	}
	var in ProofJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, ecc.UNKNOWN, fmt.Errorf("error parsing proof file %s: %v",
			path, err)
	}
	curve, err := CurveFromString(in.Curve)
	if err != nil {
		return nil, ecc.UNKNOWN, err
	}
	proof := plonk.NewProof(curve)
	if _, err := proof.ReadFrom(bytes.NewReader(in.Proof)); err != nil {
		return nil, ecc.UNKNOWN, fmt.Errorf("error decoding proof: %v", err)
	}
	return proof, curve, nil
}

// frSize is the byte size of a scalar field element for the supported curves
const frSize = 32

// WritePublicInputsJSON writes the public inputs of a witness to path as a
// JSON array of hex field elements, in circuit declaration order.
func WritePublicInputsJSON(path string, w witness.Witness) error {
	data, err := MarshalPublicInputs(w)
	if err != nil {
		return err
	}
	inputs := make([]hexutil.Bytes, 0, len(data)/frSize)
	for i := 0; i+frSize <= len(data); i += frSize {
		inputs = append(inputs, hexutil.Bytes(data[i:i+frSize]))
	}
	out, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling public inputs: %v", err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing public inputs file: %v", err)
	}
	return nil
}

// ReadPublicInputsJSON reads a public inputs artifact back into a public
// witness for the given curve.
func ReadPublicInputsJSON(path string, curve ecc.ID) (witness.Witness, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading public inputs file: %v", err)
	}
	var inputs []hexutil.Bytes
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("error parsing public inputs file %s: %v",
			path, err)
	}
	// rebuild the gnark witness binary header: public count, secret count,
	// vector length, then the elements
	var buf bytes.Buffer
	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(inputs)))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(inputs)))
	buf.Write(header)
	for _, in := range inputs {
		if len(in) != frSize {
			return nil, fmt.Errorf("public input has %d bytes, expected %d",
				len(in), frSize)
		}
		buf.Write(in)
	}
	w, err := witness.New(curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("error creating witness: %v", err)
	}
	if err := w.UnmarshalBinary(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("error decoding public inputs: %v", err)
	}
	return w, nil
}

// MarshalPublicInputs packs the public inputs of a witness as a binary blob
// of field elements in circuit declaration order.
func MarshalPublicInputs(w witness.Witness) ([]byte, error) {
	public, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("error extracting public witness: %v", err)
	}
	// MarshalBinary packs public witness data as per gnark binary format
	// (all big-endian):
	//   - 4 bytes uint32 :number of public variables
	//   - 4 bytes uint32 :number of secret variables
	//   - 4 bytes uint32 :number of total variables
	//   - a byte array for each variable, public first, then private,
	//	   in the same order as in the circuit definition, of the same size as
	//     the field modulus
	data, err := public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("error marshaling public witness: %v", err)
	}
	// we now remove the first 12 bytes, to keep only the public inputs
	return data[12:], nil
}

// MarshalProofCalldata marshals a plonk proof to the flat binary blob
// external verifiers take as calldata
func MarshalProofCalldata(proof plonk.Proof) []byte {
	var data []byte
	switch _proof := proof.(type) {
	case *plonk_bn254.Proof:
		data = _proof.MarshalSolidity()
	case *plonk_bls12381.Proof:
		data = marshalPlonkBls12381Proof(_proof)
	default:
		panic("unrecognized proof type")
	}
	return data
}

// marshalPlonkBls12381Proof marshals a BLS12-381 proof to a binary blob,
// mirroring the field order of the bn254 solidity encoding
func marshalPlonkBls12381Proof(proof *plonk_bls12381.Proof) []byte {
	res := make([]byte, 0, 1024)

	// [3][96]byte l_com, r_com, o_com
	var tmp96 [96]byte
	for i := 0; i < 3; i++ {
		tmp96 = proof.LRO[i].RawBytes()
		res = append(res, tmp96[:]...)
	}

	// [3][96]byte h1, h2, h3
	for i := 0; i < 3; i++ {
		tmp96 = proof.H[i].RawBytes()
		res = append(res, tmp96[:]...)
	}
	var tmp32 [32]byte

	// [32]byte l_at_zeta;
	// [32]byte r_at_zeta;
	// [32]byte o_at_zeta;
	// [32]byte s1_at_zeta;
	// [32]byte s2_at_zeta;
	for i := 2; i < 7; i++ {
		tmp32 = proof.BatchedProof.ClaimedValues[i].Bytes()
		res = append(res, tmp32[:]...)
	}

	// [96]byte grand_product_commitment
	tmp96 = proof.Z.RawBytes()
	res = append(res, tmp96[:]...)

	// [32]byte grand_product_at_zeta_omega;
	tmp32 = proof.ZShiftedOpening.ClaimedValue.Bytes()
	res = append(res, tmp32[:]...)

	// [32]byte quotient_polynomial_at_zeta;
	// [32]byte linearization_polynomial_at_zeta;
	tmp32 = proof.BatchedProof.ClaimedValues[0].Bytes()
	res = append(res, tmp32[:]...)
	tmp32 = proof.BatchedProof.ClaimedValues[1].Bytes()
	res = append(res, tmp32[:]...)

	// [96]byte opening_at_zeta_proof
	tmp96 = proof.BatchedProof.H.RawBytes()
	res = append(res, tmp96[:]...)

	// [96]byte opening_at_zeta_omega_proof
	tmp96 = proof.ZShiftedOpening.H.RawBytes()
	res = append(res, tmp96[:]...)

	// [][32]byte selector_commit_api_at_zeta;
	// [][96]byte wire_committed_commitments;
	if len(proof.Bsb22Commitments) > 0 {
		for i := 0; i < len(proof.Bsb22Commitments); i++ {
			tmp32 = proof.BatchedProof.ClaimedValues[7+i].Bytes()
			res = append(res, tmp32[:]...)
		}
		for _, bc := range proof.Bsb22Commitments {
			tmp96 = bc.RawBytes()
			res = append(res, tmp96[:]...)
		}
	}

	return res
}

// Package verifier checks pipeline proofs from their artifact files, playing
// the role of the external verifier: it needs only the exported verification
// key, the proof and the public inputs.
package verifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sigma0-xyz/zkbitcoin"
)

// VerifyingKeyJSON is the exported verification key artifact.
type VerifyingKeyJSON struct {
	Protocol       string        `json:"protocol"`
	Curve          string        `json:"curve"`
	NbPublicInputs int           `json:"nbPublicInputs"`
	Vk             hexutil.Bytes `json:"vk"`
}

// WriteVKJSON exports a verification key to path as a JSON artifact.
func WriteVKJSON(path string, vk plonk.VerifyingKey, curve ecc.ID,
	nbPublicInputs int) error {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return fmt.Errorf("error encoding verifying key: %v", err)
	}
	out := VerifyingKeyJSON{
		Protocol:       "plonk",
		Curve:          curve.String(),
		NbPublicInputs: nbPublicInputs,
		Vk:             buf.Bytes(),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling verifying key: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing verifying key file: %v", err)
	}
	return nil
}

// ReadVKJSON reads a verification key artifact written by WriteVKJSON.
func ReadVKJSON(path string) (plonk.VerifyingKey, ecc.ID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ecc.UNKNOWN,
			fmt.Errorf("error reading verifying key file: %v", err)
	}
	var in VerifyingKeyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, ecc.UNKNOWN,
			fmt.Errorf("error parsing verifying key file %s: %v", path, err)
	}
	curve, err := zkbitcoin.CurveFromString(in.Curve)
	if err != nil {
		return nil, ecc.UNKNOWN, err
	}
	vk := plonk.NewVerifyingKey(curve)
	if _, err := vk.ReadFrom(bytes.NewReader(in.Vk)); err != nil {
		return nil, ecc.UNKNOWN,
			fmt.Errorf("error decoding verifying key: %v", err)
	}
	return vk, curve, nil
}

// VerifyFiles checks the proof at proofPath against the verification key at
// vkPath and the public inputs at inputsPath. A nil return means the proof
// is valid for those inputs.
func VerifyFiles(vkPath, proofPath, inputsPath string) error {
	vk, vkCurve, err := ReadVKJSON(vkPath)
	if err != nil {
		return err
	}
	proof, proofCurve, err := zkbitcoin.ReadProofJSON(proofPath)
	if err != nil {
		return err
	}
	if vkCurve != proofCurve {
		return fmt.Errorf("verifying key curve %v does not match proof "+
			"curve %v", vkCurve, proofCurve)
	}
	publicInputs, err := zkbitcoin.ReadPublicInputsJSON(inputsPath, vkCurve)
	if err != nil {
		return err
	}
	if err := plonk.Verify(proof, vk, publicInputs); err != nil {
		return fmt.Errorf("proof verification failed: %v", err)
	}
	return nil
}

// WriteSolidity exports the verification key as a solidity verifier contract.
// Only supported for bn254 keys.
func WriteSolidity(path string, vk plonk.VerifyingKey) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %v", err)
	}
	defer file.Close()
	if err := vk.ExportSolidity(file); err != nil {
		return fmt.Errorf("error exporting solidity verifier: %v", err)
	}
	return nil
}

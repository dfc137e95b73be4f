package verifier_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sigma0-xyz/zkbitcoin"
	"github.com/sigma0-xyz/zkbitcoin/ceremony"
	"github.com/sigma0-xyz/zkbitcoin/circuit"
	"github.com/sigma0-xyz/zkbitcoin/verifier"
)

// proveToFiles compiles the multiplier circuit with a test setup, proves a
// valid assignment and writes the three verifier-facing artifacts.
func proveToFiles(t *testing.T) (vkPath, proofPath, inputsPath string) {
	t.Helper()
	srs, err := ceremony.TestOnlySRS(ecc.BN254, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cc, err := zkbitcoin.Compile(&circuit.MultiplierCircuit{}, ecc.BN254, srs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vp, err := cc.Verify(&circuit.MultiplierCircuit{A: 3, B: 4, C: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := t.TempDir()
	vkPath = filepath.Join(dir, "vk.json")
	proofPath = filepath.Join(dir, "proof.json")
	inputsPath = filepath.Join(dir, "proof_inputs.json")
	err = verifier.WriteVKJSON(vkPath, cc.Vk, cc.Curve,
		cc.Ccs.GetNbPublicVariables())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := zkbitcoin.WriteProofJSON(proofPath, vp.Proof, cc.Curve); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := zkbitcoin.WritePublicInputsJSON(inputsPath, vp.Witness); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return vkPath, proofPath, inputsPath
}

func TestVerifyFiles(t *testing.T) {
	vkPath, proofPath, inputsPath := proveToFiles(t)
	if err := verifier.VerifyFiles(vkPath, proofPath, inputsPath); err != nil {
		t.Errorf("valid proof rejected: %v", err)
	}
}

func TestVerifyFilesRejectsTamperedInputs(t *testing.T) {
	vkPath, proofPath, inputsPath := proveToFiles(t)

	data, err := os.ReadFile(inputsPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var inputs []hexutil.Bytes
	if err := json.Unmarshal(data, &inputs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// claim a different public product
	inputs[0][len(inputs[0])-1] ^= 1
	tampered, err := json.Marshal(inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(inputsPath, tampered, 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := verifier.VerifyFiles(vkPath, proofPath, inputsPath); err == nil {
		t.Errorf("expected tampered public inputs to fail verification")
	}
}

func TestReadVKJSON(t *testing.T) {
	vkPath, _, _ := proveToFiles(t)
	vk, curve, err := verifier.ReadVKJSON(vkPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vk == nil || curve != ecc.BN254 {
		t.Errorf("unexpected verifying key: %v, %v", vk, curve)
	}

	badPath := filepath.Join(t.TempDir(), "vk.json")
	if err := os.WriteFile(badPath, []byte("not json"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := verifier.ReadVKJSON(badPath); err == nil {
		t.Errorf("expected error reading a malformed verifying key file")
	}
}

package zkbitcoin

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
)

// Keypair is the key generation artifact: the proving and verifying keys,
// bound to the hash of the constraint system they were set up for.
type Keypair struct {
	Pk      plonk.ProvingKey
	Vk      plonk.VerifyingKey
	Curve   ecc.ID
	CcsHash []byte
}

// keypairBlob is the gob envelope of a keypair, with keys pre-serialized in
// gnark binary format.
type keypairBlob struct {
	Curve   ecc.ID
	CcsHash []byte
	Pk      []byte
	Vk      []byte
}

// WriteKeypair serializes the keypair of a compiled circuit to path,
// recording ccsHash so provers can detect a stale or mismatched constraint
// system file.
func (cc *CompiledCircuit) WriteKeypair(path string, ccsHash []byte) error {
	var pkb, vkb bytes.Buffer
	if _, err := cc.Pk.WriteTo(&pkb); err != nil {
		return fmt.Errorf("error encoding proving key: %v", err)
	}
	if _, err := cc.Vk.WriteTo(&vkb); err != nil {
		return fmt.Errorf("error encoding verifying key: %v", err)
	}
	blob := keypairBlob{
		Curve:   cc.Curve,
		CcsHash: ccsHash,
		Pk:      pkb.Bytes(),
		Vk:      vkb.Bytes(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return fmt.Errorf("error encoding keypair: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("error writing keypair to file: %v", err)
	}
	return nil
}

// ReadKeypair deserializes a keypair from path.
func ReadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading keypair file: %v", err)
	}
	var blob keypairBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return nil, fmt.Errorf("error decoding keypair: %v", err)
	}
	kp := &Keypair{
		Pk:      plonk.NewProvingKey(blob.Curve),
		Vk:      plonk.NewVerifyingKey(blob.Curve),
		Curve:   blob.Curve,
		CcsHash: blob.CcsHash,
	}
	if _, err := kp.Pk.ReadFrom(bytes.NewReader(blob.Pk)); err != nil {
		return nil, fmt.Errorf("error reading proving key data: %v", err)
	}
	if _, err := kp.Vk.ReadFrom(bytes.NewReader(blob.Vk)); err != nil {
		return nil, fmt.Errorf("error reading verifying key data: %v", err)
	}
	return kp, nil
}

// FileSHA256 returns the sha256 digest of the file at path.
func FileSHA256(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %v", path, err)
	}
	defer file.Close()
	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return nil, fmt.Errorf("error hashing %s: %v", path, err)
	}
	return h.Sum(nil), nil
}

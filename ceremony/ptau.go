package ceremony

import (
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	gp "github.com/mdehoog/gnark-ptau"
)

// ImportPtau reads a .ptau file from the snarkjs perpetual powers-of-tau
// ceremony (BN254) and converts it into already-prepared phase-2 parameters
// truncated to the requested power. The hermez ceremony files carry their own
// contribution history, so the imported file is recorded under a single
// contribution named after the source.
func ImportPtau(r io.Reader, power uint8, sourceName string) (*File, error) {
	srs, err := gp.ToSRS(r)
	if err != nil {
		return nil, fmt.Errorf("error converting .ptau to SRS: %v", err)
	}
	size := Size(power)
	if uint64(len(srs.Pk.G1)) < size {
		return nil, fmt.Errorf("ceremony file has %d G1 points, power %d "+
			"needs %d", len(srs.Pk.G1), power, size)
	}
	srs.Pk.G1 = srs.Pk.G1[:size]
	f := &File{
		Curve:         ecc.BN254,
		Power:         power,
		Phase:         Phase2,
		Contributions: []Contribution{{Name: sourceName}},
		SRS:           srs,
	}
	f.Contributions[0].Hash = accumulatorHashBn254(srs)
	if err := f.check(); err != nil {
		return nil, fmt.Errorf("imported accumulator check failed: %v", err)
	}
	return f, nil
}

// ImportPtauFile is ImportPtau reading from the file at path.
func ImportPtauFile(path string, power uint8) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %v", path, err)
	}
	defer file.Close()
	return ImportPtau(file, power, "imported: "+path)
}

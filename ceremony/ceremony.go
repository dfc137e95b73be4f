package ceremony

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	kzg_bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/consensys/gnark-crypto/kzg"
)

// Conf specifies where the SRS used for key generation comes from: an
// imported ceremony file, a locally run ceremony, or a test only setup not
// suitable for production.
type Conf int

const (
	Trusted Conf = iota
	Local
	TestOnly
)

var magic = [8]byte{'z', 'k', 'b', 'S', 'R', 'S', 0, 1}

const (
	Phase1 uint8 = 1
	Phase2 uint8 = 2

	// extra points beyond 2^power needed by the plonk setup
	extraPoints = 5

	maxPower = 28
)

// Contribution records one participant of the ceremony: a display name and
// the hash of the accumulator after their contribution was applied.
type Contribution struct {
	Name string
	Hash [32]byte
}

// File is a powers-of-tau accumulator together with its ceremony metadata.
type File struct {
	Curve         ecc.ID
	Power         uint8
	Phase         uint8
	Contributions []Contribution
	SRS           kzg.SRS
}

// Size returns the number of G1 points an accumulator of the given power
// holds, supporting circuits of up to 2^power constraints.
func Size(power uint8) uint64 {
	return 1<<uint64(power) + extraPoints
}

// Initialize creates a fresh phase-1 accumulator for the given curve and
// power, with tau = 1 so that every point is the group generator. It holds no
// contributions yet and offers no security until at least one is applied.
func Initialize(curve ecc.ID, power uint8) (*File, error) {
	if power == 0 || power > maxPower {
		return nil, fmt.Errorf("power must be between 1 and %d, got %d",
			maxPower, power)
	}
	var srs kzg.SRS
	switch curve {
	case ecc.BN254:
		srs = initialSRSBn254(Size(power))
	case ecc.BLS12_381:
		srs = initialSRSBls12381(Size(power))
	default:
		return nil, fmt.Errorf("unsupported curve: %v", curve)
	}
	return &File{
		Curve: curve,
		Power: power,
		Phase: Phase1,
		SRS:   srs,
	}, nil
}

// Contribute applies one contribution to a phase-1 accumulator: it samples a
// fresh random secret, rescales every accumulator point by its powers and
// discards the secret. The contribution is recorded in the file header under
// `name` together with the hash of the resulting accumulator.
func (f *File) Contribute(name string) error {
	if f.Phase != Phase1 {
		return fmt.Errorf("can only contribute to a phase-1 accumulator, "+
			"this is phase %d", f.Phase)
	}
	secret, err := randomScalar(f.Curve)
	if err != nil {
		return fmt.Errorf("error sampling contribution secret: %v", err)
	}
	defer secret.SetInt64(0)

	var hash [32]byte
	switch srs := f.SRS.(type) {
	case *kzg_bn254.SRS:
		contributeBn254(srs, secret)
		hash = accumulatorHashBn254(srs)
	case *kzg_bls12381.SRS:
		contributeBls12381(srs, secret)
		hash = accumulatorHashBls12381(srs)
	default:
		return fmt.Errorf("unrecognized SRS type %T", f.SRS)
	}
	f.Contributions = append(f.Contributions, Contribution{name, hash})
	return nil
}

// PreparePhase2 turns a contributed phase-1 accumulator into the
// circuit-independent phase-2 parameters consumed by key generation. It
// requires at least one contribution and checks the accumulator structure
// before promoting it.
func (f *File) PreparePhase2() (*File, error) {
	if f.Phase != Phase1 {
		return nil, fmt.Errorf("expected a phase-1 accumulator, got phase %d",
			f.Phase)
	}
	if len(f.Contributions) == 0 {
		return nil, fmt.Errorf("accumulator has no contributions")
	}
	if err := f.check(); err != nil {
		return nil, fmt.Errorf("accumulator check failed: %v", err)
	}
	// the prepared file gets its own copy of the accumulator, so further
	// contributions to the phase-1 file leave it untouched
	var srs kzg.SRS
	switch s := f.SRS.(type) {
	case *kzg_bn254.SRS:
		srs = cloneSRSBn254(s)
	case *kzg_bls12381.SRS:
		srs = cloneSRSBls12381(s)
	default:
		return nil, fmt.Errorf("unrecognized SRS type %T", f.SRS)
	}
	prepared := &File{
		Curve:         f.Curve,
		Power:         f.Power,
		Phase:         Phase2,
		Contributions: append([]Contribution(nil), f.Contributions...),
		SRS:           srs,
	}
	return prepared, nil
}

// check verifies the accumulator structure: the first G1 and G2 points must
// be the group generators and consecutive G1 powers must be consistent with
// the tau committed in G2.
func (f *File) check() error {
	switch srs := f.SRS.(type) {
	case *kzg_bn254.SRS:
		return checkBn254(srs)
	case *kzg_bls12381.SRS:
		return checkBls12381(srs)
	default:
		return fmt.Errorf("unrecognized SRS type %T", f.SRS)
	}
}

// WriteTo serializes the ceremony file, header first then the SRS.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var written int64
	header := make([]byte, 0, 64)
	header = append(header, magic[:]...)
	header = binary.BigEndian.AppendUint32(header, uint32(f.Curve))
	header = append(header, f.Power, f.Phase)
	header = binary.BigEndian.AppendUint32(header, uint32(len(f.Contributions)))
	for _, c := range f.Contributions {
		if len(c.Name) > 1<<16-1 {
			return written, fmt.Errorf("contribution name too long")
		}
		header = binary.BigEndian.AppendUint16(header, uint16(len(c.Name)))
		header = append(header, c.Name...)
		header = append(header, c.Hash[:]...)
	}
	n, err := w.Write(header)
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("error writing header: %v", err)
	}
	m, err := f.SRS.WriteTo(w)
	written += m
	if err != nil {
		return written, fmt.Errorf("error writing SRS: %v", err)
	}
	return written, nil
}

// ReadFrom deserializes a ceremony file written by WriteTo.
func ReadFrom(r io.Reader) (*File, error) {
	var head [18]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("error reading header: %v", err)
	}
	if [8]byte(head[:8]) != magic {
		return nil, fmt.Errorf("not a ceremony file (bad magic)")
	}
	f := &File{
		Curve: ecc.ID(binary.BigEndian.Uint32(head[8:12])),
		Power: head[12],
		Phase: head[13],
	}
	nContrib := binary.BigEndian.Uint32(head[14:18])
	for i := uint32(0); i < nContrib; i++ {
		var nameLen [2]byte
		if _, err := io.ReadFull(r, nameLen[:]); err != nil {
			return nil, fmt.Errorf("error reading contribution %d: %v", i, err)
		}
		buf := make([]byte, binary.BigEndian.Uint16(nameLen[:])+32)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("error reading contribution %d: %v", i, err)
		}
		c := Contribution{Name: string(buf[:len(buf)-32])}
		copy(c.Hash[:], buf[len(buf)-32:])
		f.Contributions = append(f.Contributions, c)
	}
	srs, err := emptySRS(f.Curve)
	if err != nil {
		return nil, err
	}
	if _, err := srs.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("error reading SRS: %v", err)
	}
	f.SRS = srs
	return f, nil
}

// Save writes the ceremony file to path, creating or truncating it.
func (f *File) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %v", err)
	}
	defer file.Close()
	if _, err := f.WriteTo(file); err != nil {
		return fmt.Errorf("error writing %s: %v", path, err)
	}
	return nil
}

// Load reads a ceremony file from path.
func Load(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %v", err)
	}
	defer file.Close()
	f, err := ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %v", path, err)
	}
	return f, nil
}

// TestOnlySRS returns an SRS derived from a known secret, usable to exercise
// the pipeline without a ceremony. Not suitable for production.
func TestOnlySRS(curve ecc.ID, power uint8) (kzg.SRS, error) {
	size := Size(power)
	switch curve {
	case ecc.BN254:
		return kzg_bn254.NewSRS(size, big.NewInt(-1))
	case ecc.BLS12_381:
		return kzg_bls12381.NewSRS(size, big.NewInt(-1))
	default:
		return nil, fmt.Errorf("unsupported curve: %v", curve)
	}
}

func emptySRS(curve ecc.ID) (kzg.SRS, error) {
	switch curve {
	case ecc.BN254:
		return &kzg_bn254.SRS{}, nil
	case ecc.BLS12_381:
		return &kzg_bls12381.SRS{}, nil
	default:
		return nil, fmt.Errorf("unsupported curve: %v", curve)
	}
}

func randomScalar(curve ecc.ID) (*big.Int, error) {
	for {
		s, err := rand.Int(rand.Reader, curve.ScalarField())
		if err != nil {
			return nil, err
		}
		if s.Sign() != 0 {
			return s, nil
		}
	}
}

package circuit

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/scs"
)

// Compile compiles a registered circuit into a plonk constraint system.
// Compilation is deterministic: the same circuit and curve always produce
// the same constraint system.
func Compile(name string, curve ecc.ID) (constraint.ConstraintSystem, error) {
	def, err := Get(name)
	if err != nil {
		return nil, err
	}
	ccs, err := frontend.Compile(curve.ScalarField(), scs.NewBuilder, def.Circuit())
	if err != nil {
		return nil, fmt.Errorf("error compiling circuit %q: %v", name, err)
	}
	return ccs, nil
}

// WriteConstraintSystem writes a compiled constraint system to path.
func WriteConstraintSystem(ccs constraint.ConstraintSystem, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %v", err)
	}
	defer file.Close()
	if _, err := ccs.WriteTo(file); err != nil {
		return fmt.Errorf("error writing constraint system: %v", err)
	}
	return nil
}

// ReadConstraintSystem reads a constraint system written by
// WriteConstraintSystem.
func ReadConstraintSystem(path string, curve ecc.ID) (
	constraint.ConstraintSystem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %v", err)
	}
	defer file.Close()
	ccs := plonk.NewCS(curve)
	if _, err := ccs.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("error reading constraint system: %v", err)
	}
	return ccs, nil
}

// Symbol maps a circuit wire name to its declaration position and visibility.
type Symbol struct {
	Name       string `json:"name"`
	Visibility string `json:"visibility"`
	Index      int    `json:"index"`
}

// Symbols extracts the wire symbols of a circuit from its struct definition,
// in declaration order, honoring gnark struct tags for names and visibility.
func Symbols(c frontend.Circuit) []Symbol {
	var syms []Symbol
	walkVariables(reflect.ValueOf(c).Elem(), "", "secret", &syms)
	return syms
}

var variableType = reflect.TypeOf((*frontend.Variable)(nil)).Elem()

func walkVariables(v reflect.Value, prefix, visibility string, syms *[]Symbol) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		vis := visibility
		if tag, ok := field.Tag.Lookup("gnark"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] != "" && parts[0] != "-" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "public" || p == "secret" {
					vis = p
				}
			}
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		walkField(v.Field(i), field.Type, name, vis, syms)
	}
}

func walkField(v reflect.Value, t reflect.Type, name, vis string, syms *[]Symbol) {
	switch {
	case t == variableType:
		*syms = append(*syms, Symbol{name, vis, len(*syms)})
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkField(v.Index(i), t.Elem(),
				fmt.Sprintf("%s[%d]", name, i), vis, syms)
		}
	case t.Kind() == reflect.Struct:
		walkVariables(v, name, vis, syms)
	}
}

// WriteSymbols writes the symbol mapping of a circuit to path as JSON.
func WriteSymbols(c frontend.Circuit, path string) error {
	data, err := json.MarshalIndent(Symbols(c), "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling symbols: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing symbols file: %v", err)
	}
	return nil
}

// ReadInputs reads a JSON inputs file: an object mapping input names to
// numbers, decimal strings or 0x-prefixed hex strings.
func ReadInputs(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading inputs file: %v", err)
	}
	var inputs map[string]interface{}
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("error parsing inputs file %s: %v", path, err)
	}
	return inputs, nil
}

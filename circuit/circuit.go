// Package circuit holds the registry of circuits the pipeline can compile and
// prove, and the compilation step that turns a registered circuit into its
// on-disk artifacts: the constraint system and the symbol mapping.
package circuit

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/consensys/gnark/frontend"
)

// Definition is a named circuit the pipeline knows how to compile and assign.
// Circuit returns a blank instance for compilation; Assign builds a full
// assignment from the decoded contents of an inputs file.
type Definition interface {
	Name() string
	Circuit() frontend.Circuit
	Assign(inputs map[string]interface{}) (frontend.Circuit, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Definition)
)

// Register makes a circuit available to the pipeline by its name.
// It panics if called twice with the same name.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := def.Name()
	if _, dup := registry[name]; dup {
		panic("circuit: Register called twice for " + name)
	}
	registry[name] = def
}

// Get retrieves a registered circuit by name.
func Get(name string) (Definition, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	def, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown circuit %q (registered: %v)",
			name, list())
	}
	return def, nil
}

// List returns the names of all registered circuits, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return list()
}

func list() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toBigInt converts a decoded JSON input value to a field element value.
// Accepts numbers, decimal strings and 0x-prefixed hex strings.
func toBigInt(v interface{}) (*big.Int, error) {
	switch x := v.(type) {
	case float64:
		if x != float64(int64(x)) {
			return nil, fmt.Errorf("value %v is not an integer", x)
		}
		return big.NewInt(int64(x)), nil
	case string:
		b, ok := new(big.Int).SetString(x, 0)
		if !ok {
			return nil, fmt.Errorf("cannot parse %q as an integer", x)
		}
		return b, nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case *big.Int:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported input type %T", v)
	}
}

// input fetches and converts a named value from an inputs map.
func input(inputs map[string]interface{}, name string) (*big.Int, error) {
	v, ok := inputs[name]
	if !ok {
		return nil, fmt.Errorf("missing input %q", name)
	}
	b, err := toBigInt(v)
	if err != nil {
		return nil, fmt.Errorf("input %q: %v", name, err)
	}
	return b, nil
}

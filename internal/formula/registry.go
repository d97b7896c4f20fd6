package formula

import (
	"fmt"
	"sort"
	"strings"
)

// ArgSpec describes what one argument position of a function accepts and
// which sanctioned implicit coercion, if any, applies to types it does not
// accept directly. The resolver wraps coerced arguments in a call to the
// returned wrapper function so generation and evaluation see the coercion
// explicitly.
type ArgSpec struct {
	Accept func(Type) bool
	Coerce func(Type) string
	Want   string
}

// Definition is one entry of the function registry: the argument contract, the
// result type rule, the SQL lowering and the in-process lowering. The registry
// is built once at process init and read-only afterwards.
type Definition struct {
	Name    string
	MinArgs int
	// MaxArgs of -1 means variadic; the last ArgSpec repeats.
	MaxArgs int
	Args    []ArgSpec

	// Result computes the call's type from the (already coerced) argument
	// types. It may return an invalid type for cross-argument mismatches.
	Result func(at Span, args []Type) Type

	// SQL lowers the call to a native query expression fragment. The args are
	// the already lowered argument fragments.
	SQL func(d Dialect, argTypes []Type, args []string) string

	// Eval computes the call in-process for preview evaluation.
	Eval func(args []Value) (Value, error)
}

// argSpec returns the spec for argument position i, repeating the last spec
// for variadic functions.
func (d *Definition) argSpec(i int) ArgSpec {
	if i >= len(d.Args) {
		return d.Args[len(d.Args)-1]
	}
	return d.Args[i]
}

var registry = buildRegistry()

// Lookup finds a function definition by name, case-insensitively.
func Lookup(name string) (*Definition, bool) {
	def, ok := registry[strings.ToLower(name)]
	return def, ok
}

// FunctionNames returns the sorted canonical names of every registered
// function.
func FunctionNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildRegistry() map[string]*Definition {
	reg := make(map[string]*Definition)
	for _, def := range allDefinitions() {
		name := strings.ToLower(def.Name)
		if _, dup := reg[name]; dup {
			panic(fmt.Sprintf("formula: duplicate function definition %q", name))
		}
		if def.Result == nil || def.SQL == nil || def.Eval == nil {
			// A resolvable function without both lowerings would surface as an
			// internal error mid-request; refuse to start instead.
			panic(fmt.Sprintf("formula: function %q is missing a lowering", name))
		}
		if len(def.Args) == 0 && def.MaxArgs != 0 {
			panic(fmt.Sprintf("formula: function %q declares no argument specs", name))
		}
		reg[name] = def
	}
	return reg
}

// Package gstcmd builds canonical gst-launch invocations for flow pipelines.
//
// Design:
//
//   - This layer is a pure "command construction" module: no execution, no I/O.
//     It returns one of two projections of the same pipeline: argv (process
//     argument vector) or a shell-quoted command string (for logging).
//   - Each element property is a single argv entry ("name=value"). gst-launch
//     escapes argv entries before parsing, so values may contain spaces.
//
// Emission policy is deterministic and explicit:
//
//   - Elements are emitted source first and linked with "!".
//   - Numeric + boolean properties are ALWAYS emitted (including 0/false).
//   - Optional string properties are emitted only when non-empty.
//   - argv[0] is always the binary name, followed by "-v" and "-m" so that
//     property notifications and bus messages reach stdout.
//
// Usage:
//
//	b, err := gstcmd.FromPipeline(p, gstcmd.Options{})
//	argv := b.BuildArgv()   // []string{"gst-launch-1.0", "-v", "-m", "udpsrc", ...}
//	s    := b.BuildString() // "'gst-launch-1.0' '-v' '-m' 'udpsrc' ..."
package gstcmd

import (
	"strconv"
	"strings"
)

// DefaultBinary is the gst-launch executable looked up in PATH.
const DefaultBinary = "gst-launch-1.0"

// Builder constructs argv and shell-safe command strings for gst-launch.
//
// The Builder implements a fluent API; it is NOT concurrency-safe.
//
// Invariants:
//   - argv[0] is always the binary.
//   - Property methods apply to the most recently added element.
//   - BuildArgv returns a defensive copy.
type Builder struct {
	args  []string // argv including binary name at index 0
	elems int
}

// NewBuilder returns a Builder pre-seeded with the binary name and the
// verbose flags. An empty bin selects DefaultBinary.
func NewBuilder(bin string) *Builder {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Builder{args: []string{bin, "-v", "-m"}}
}

//////////////////////////////////
// Fluent element/prop builders. //
//////////////////////////////////

// Element appends an element factory, linked to the previous element.
func (b *Builder) Element(factory string) *Builder {
	if b.elems > 0 {
		b.args = append(b.args, "!")
	}
	b.args = append(b.args, factory)
	b.elems++
	return b
}

// Caps appends a caps filter in its short form.
func (b *Builder) Caps(caps string) *Builder {
	return b.Element(caps)
}

// Prop appends name=value (always emitted).
func (b *Builder) Prop(name, val string) *Builder {
	b.args = append(b.args, name+"="+val)
	return b
}

// PropString appends name=value if val is non-empty.
func (b *Builder) PropString(name, val string) *Builder {
	if val != "" {
		b.Prop(name, val)
	}
	return b
}

// PropInt appends a base-10 int64 property (always emitted).
func (b *Builder) PropInt(name string, val int64) *Builder {
	return b.Prop(name, strconv.FormatInt(val, 10))
}

// PropUint appends a base-10 uint64 property (always emitted).
func (b *Builder) PropUint(name string, val uint64) *Builder {
	return b.Prop(name, strconv.FormatUint(val, 10))
}

// PropBool appends name=true or name=false (always emitted).
func (b *Builder) PropBool(name string, val bool) *Builder {
	return b.Prop(name, strconv.FormatBool(val))
}

// chain appends each element with its fixed properties.
func (b *Builder) chain(elems ...element) *Builder {
	for _, e := range elems {
		b.Element(e.factory)
		for _, p := range e.props {
			b.Prop(p.name, p.value)
		}
	}
	return b
}

///////////////////////////
// Build output methods. //
///////////////////////////

// BuildArgv returns a defensive copy of the constructed argument vector.
func (b *Builder) BuildArgv() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// BuildString returns a single shell-quoted command string.
//
// Quoting strategy:
//   - Single-quote wrapping with inner single quotes escaped as:  ' -> '\''
func (b *Builder) BuildString() string {
	quoted := make([]string, len(b.args))
	for i, a := range b.args {
		quoted[i] = shQuote(a)
	}
	return strings.Join(quoted, " ")
}

//////////////////////
// Internal helpers //
//////////////////////

type prop struct {
	name  string
	value string
}

// element is a factory with fixed properties, used for codec tables.
type element struct {
	factory string
	props   []prop
}

func el(factory string, kv ...string) element {
	e := element{factory: factory}
	for i := 0; i+1 < len(kv); i += 2 {
		e.props = append(e.props, prop{name: kv[i], value: kv[i+1]})
	}
	return e
}

// shQuote returns a POSIX-safe single-quoted token.
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

package function

import (
	"errors"
	"fmt"
	"math"
	mathrand "math/rand/v2"
	"sort"
	"strconv"
	"strings"
)

// Errors returned while resolving functions.
var (
	// ErrConfiguration is returned for a function name that is not built in.
	ErrConfiguration = errors.New("unsupported function")

	// ErrArgument is returned for a malformed function range.
	ErrArgument = errors.New("invalid function range")
)

// Unbounded marks an omitted right range bound.
const Unbounded = math.MaxInt

// Kind identifies a built-in function.
type Kind uint8

// Built-in functions.
const (
	KindSum Kind = iota + 1
	KindCRC8
	KindCRC16
	KindRand
)

var kindNames = map[Kind]string{
	KindSum:   "sum",
	KindCRC8:  "crc8",
	KindCRC16: "crc16",
	KindRand:  "rand",
}

// String returns the lowercase function name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Size returns the number of bytes the function writes.
func (k Kind) Size() int {
	switch k {
	case KindCRC16:
		return 2
	case KindSum, KindCRC8, KindRand:
		return 1
	default:
		return 0
	}
}

// Instance is a function bound to a slot of a template.
// Start and End are inclusive; End may be Unbounded.
type Instance struct {
	Kind     Kind
	Position int
	Start    int
	End      int
}

// Size returns the number of bytes the instance writes at Position.
func (f Instance) Size() int { return f.Kind.Size() }

// String renders the instance in template syntax, e.g. "@sum[3..]".
func (f Instance) String() string {
	var b strings.Builder
	b.WriteByte('@')
	b.WriteString(f.Kind.String())
	if f.Start == 0 && f.End == Unbounded {
		return b.String()
	}
	b.WriteByte('[')
	if f.Start != 0 {
		b.WriteString(strconv.Itoa(f.Start))
	}
	b.WriteString("..")
	if f.End != Unbounded {
		b.WriteString(strconv.Itoa(f.End))
	}
	b.WriteByte(']')
	return b.String()
}

// Window returns the inclusive range of buf indices the function reads.
// The right bound never reaches Position. ok is false for an empty window.
func (f Instance) Window(n int) (lo, hi int, ok bool) {
	lo = max(f.Start, 0)
	hi = min(f.End, f.Position-1, n-1)
	return lo, hi, lo <= hi
}

// Compute writes the function result into buf[Position:Position+Size()].
// Only bytes before Position are read. Slots outside buf are left alone.
func (f Instance) Compute(buf []byte, rng *mathrand.Rand) {
	size := f.Size()
	if size == 0 || f.Position < 0 || f.Position+size > len(buf) {
		return
	}

	var data []byte
	if lo, hi, ok := f.Window(len(buf)); ok {
		data = buf[lo : hi+1]
	}

	switch f.Kind {
	case KindSum:
		buf[f.Position] = Sum8(data)
	case KindCRC8:
		buf[f.Position] = CRC8(data)
	case KindCRC16:
		crc := CRC16(data)
		buf[f.Position] = byte(crc)
		buf[f.Position+1] = byte(crc >> 8)
	case KindRand:
		buf[f.Position] = f.random(rng)
	}
}

// random returns a byte in [max(0,Start), min(255,End)].
func (f Instance) random(rng *mathrand.Rand) byte {
	lo := max(f.Start, 0)
	hi := min(f.End, 255)
	if lo > 255 {
		return 255
	}
	if hi < lo {
		return byte(lo)
	}
	return byte(lo + rngIntN(rng, hi-lo+1))
}

// Lookup returns the Kind registered under name, ignoring case.
func Lookup(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// IsAvailable reports whether name is a built-in function.
func IsAvailable(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Names returns the built-in function names in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(kindNames))
	for _, n := range kindNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve binds the named function to position with an unrestricted range.
func Resolve(name string, position int) (Instance, error) {
	return ResolveRange(name, position, 0, Unbounded)
}

// ResolveRange binds the named function to position covering [start, end].
func ResolveRange(name string, position, start, end int) (Instance, error) {
	kind, ok := Lookup(name)
	if !ok {
		return Instance{}, fmt.Errorf("%w: %q (available: %s)", ErrConfiguration, name, strings.Join(Names(), ", "))
	}
	if start < 0 || end < start {
		return Instance{}, fmt.Errorf("%w: [%d..%d]", ErrArgument, start, end)
	}
	return Instance{Kind: kind, Position: position, Start: start, End: end}, nil
}

// ParseRange parses a range suffix of the form "[a..b]" where both bounds are
// optional non-negative decimal integers.
func ParseRange(s string) (start, end int, err error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return 0, 0, fmt.Errorf("%w: %q is not bracketed", ErrArgument, s)
	}
	left, right, found := strings.Cut(s[1:len(s)-1], "..")
	if !found {
		return 0, 0, fmt.Errorf("%w: %q has no '..' separator", ErrArgument, s)
	}

	start, end = 0, Unbounded
	if left != "" {
		if start, err = parseBound(left); err != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", ErrArgument, s, err)
		}
	}
	if right != "" {
		if end, err = parseBound(right); err != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", ErrArgument, s, err)
		}
	}
	if end < start {
		return 0, 0, fmt.Errorf("%w: %q ends before it starts", ErrArgument, s)
	}
	return start, end, nil
}

func parseBound(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("bound %q is not a non-negative integer", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bound %q: %w", s, err)
	}
	return n, nil
}

// Package cigar implements the compact packed-CIGAR algebra (C5): 28-bit
// length / 4-bit opcode packing, string conversion, append-with-merge
// composition, and reference/query length accounting.
package cigar

import (
	"strconv"

	"github.com/shenwei356/refmsa/internal/errs"
)

// Op is one of the nine CIGAR opcodes, using the 4-bit codes from spec.md §3.
type Op uint8

const (
	OpM Op = 0 // alignment match (sequence match or mismatch)
	OpI Op = 1 // insertion to the reference
	OpD Op = 2 // deletion from the reference
	OpN Op = 3 // skipped region from the reference
	OpS Op = 4 // soft clip
	OpH Op = 5 // hard clip
	OpP Op = 6 // padding
	OpEq Op = 7 // sequence match
	OpX Op = 8 // sequence mismatch
)

var opChars = [...]byte{'M', 'I', 'D', 'N', 'S', 'H', 'P', '=', 'X'}

func (o Op) Byte() byte {
	if int(o) < len(opChars) {
		return opChars[o]
	}
	return '?'
}

func opFromByte(b byte) (Op, bool) {
	switch b {
	case 'M':
		return OpM, true
	case 'I':
		return OpI, true
	case 'D':
		return OpD, true
	case 'N':
		return OpN, true
	case 'S':
		return OpS, true
	case 'H':
		return OpH, true
	case 'P':
		return OpP, true
	case '=':
		return OpEq, true
	case 'X':
		return OpX, true
	default:
		return 0, false
	}
}

// maxLen is the largest length a 28-bit field can hold (len < 2^28).
const maxLen = 1<<28 - 1

// MaxUnitLen exports maxLen for callers (e.g. align) that need to chunk
// long runs into multiple units.
const MaxUnitLen = maxLen

// Unit is a single packed CIGAR operation: high 28 bits length, low 4 bits
// opcode.
type Unit uint32

// Encode packs an operation character and length into a Unit. Fails with
// InvalidArgument if len is 0, >= 2^28, or op is not a recognized opcode
// character.
func Encode(opChar byte, length uint32) (Unit, error) {
	op, ok := opFromByte(opChar)
	if !ok {
		return 0, errs.Newf(errs.InvalidArgument, "", "cigar: unknown opcode %q", opChar)
	}
	if length == 0 || length > maxLen {
		return 0, errs.Newf(errs.InvalidArgument, "", "cigar: length %d out of range", length)
	}
	return Unit(length<<4) | Unit(op), nil
}

// Decode unpacks a Unit back into its operation character and length. A
// stray unknown low-nibble code decodes to '?' rather than panicking.
func Decode(u Unit) (opChar byte, length uint32) {
	op := Op(u & 0xf)
	length = uint32(u >> 4)
	return op.Byte(), length
}

// Cigar is an ordered sequence of packed units.
type Cigar []Unit

// HasInsertion reports whether any unit in c is an I operation.
func (c Cigar) HasInsertion() bool {
	for _, u := range c {
		if Op(u&0xf) == OpI {
			return true
		}
	}
	return false
}

// String renders c in the conventional "<len><op>..." textual form,
// pre-sizing the builder to avoid reallocation (5 bytes/unit is a
// comfortable upper estimate for typical alignment lengths).
func (c Cigar) String() string {
	buf := make([]byte, 0, 5*len(c))
	for _, u := range c {
		op, length := Decode(u)
		buf = strconv.AppendUint(buf, uint64(length), 10)
		buf = append(buf, op)
	}
	return string(buf)
}

// Parse parses the conventional textual CIGAR form into a Cigar, rejecting
// invalid tokens with a ParseError.
func Parse(s string) (Cigar, error) {
	var c Cigar
	var n uint32
	haveDigit := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= '0' && b <= '9' {
			n = n*10 + uint32(b-'0')
			haveDigit = true
			continue
		}
		if !haveDigit {
			return nil, errs.Newf(errs.ParseError, "", "cigar: missing length before opcode at byte %d", i)
		}
		u, err := Encode(b, n)
		if err != nil {
			return nil, errs.Wrap(errs.ParseError, "", err)
		}
		c = append(c, u)
		n = 0
		haveDigit = false
	}
	if haveDigit {
		return nil, errs.New(errs.ParseError, "", "cigar: trailing length with no opcode")
	}
	return c, nil
}

// AppendWithMerge appends other to acc, merging acc's last unit with
// other's first unit when they share an opcode, and returns the extended
// slice. Associative: AppendWithMerge(AppendWithMerge(a,b),c) produces the
// same canonical sequence as AppendWithMerge(a,AppendWithMerge(b,c)).
func AppendWithMerge(acc Cigar, other Cigar) Cigar {
	for _, u := range other {
		acc = appendUnit(acc, u)
	}
	return acc
}

func appendUnit(acc Cigar, u Unit) Cigar {
	if len(acc) > 0 {
		lastOp := acc[len(acc)-1] & 0xf
		if lastOp == (u & 0xf) {
			_, lastLen := Decode(acc[len(acc)-1])
			_, addLen := Decode(u)
			acc[len(acc)-1] = Unit((uint64(lastLen)+uint64(addLen))<<4) | lastOp
			return acc
		}
	}
	return append(acc, u)
}

// refConsuming/qryConsuming classify which opcodes advance the reference
// and query coordinate respectively, per spec.md §3.
func refConsuming(op Op) bool {
	switch op {
	case OpM, OpD, OpN, OpEq, OpX:
		return true
	default:
		return false
	}
}

func qryConsuming(op Op) bool {
	switch op {
	case OpM, OpI, OpS, OpEq, OpX:
		return true
	default:
		return false
	}
}

// RefLength returns Σ len over {M,D,N,=,X}.
func (c Cigar) RefLength() int {
	var n int
	for _, u := range c {
		if refConsuming(Op(u & 0xf)) {
			n += int(u >> 4)
		}
	}
	return n
}

// QryLength returns Σ len over {M,I,S,=,X}.
func (c Cigar) QryLength() int {
	var n int
	for _, u := range c {
		if qryConsuming(Op(u & 0xf)) {
			n += int(u >> 4)
		}
	}
	return n
}

// Canonical reports whether no two adjacent units share an opcode.
func (c Cigar) Canonical() bool {
	for i := 1; i < len(c); i++ {
		if c[i]&0xf == c[i-1]&0xf {
			return false
		}
	}
	return true
}

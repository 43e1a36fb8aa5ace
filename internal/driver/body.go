package driver

import (
	"fmt"

	"github.com/proofdex/proofdex/internal/ir"
	"github.com/proofdex/proofdex/internal/proof"
)

// Instr is one safety-relevant instruction of a parsed function body. The
// parser collaborator reduces a function to the instructions that induce
// proof obligations; everything else is irrelevant here.
type Instr interface {
	instrLine() int
}

// Deref is a pointer dereference: *ptr or ptr->field.
type Deref struct {
	Line int
	Ptr  string
}

func (d Deref) instrLine() int { return d.Line }

// IndexAccess is an array subscript: base[index].
type IndexAccess struct {
	Line  int
	Base  string
	Index string
}

func (a IndexAccess) instrLine() int { return a.Line }

// Divide is a division or modulo by a non-constant divisor.
type Divide struct {
	Line    int
	Divisor string
}

func (d Divide) instrLine() int { return d.Line }

// Call is a call to a named function.
type Call struct {
	Line   int
	Callee string
	Args   []string
}

func (c Call) instrLine() int { return c.Line }

// Body is the parsed body of one function.
type Body struct {
	Params []string
	Instrs []Instr
}

// generatePPOs walks the body once and attaches the standard safety
// obligations: dereference needs not-null and valid-mem, a subscript needs
// in-bounds, division needs not-zero. Calls only register callsites here;
// their supporting obligations come from the callee's interface.
func generatePPOs(f *proof.FunctionProofs, file string, body Body) error {
	d := f.Dictionary()
	evar := func(name string) (int, error) {
		return d.Intern("expressions", []string{ir.TagVar, name}, nil)
	}
	ppo := func(tag string, exp, line int) error {
		_, err := f.CreatePPO([]string{tag}, ir.AppendRef(nil, ir.Local(exp)),
			ir.Location{File: file, Line: line})
		return err
	}

	for _, in := range body.Instrs {
		switch i := in.(type) {
		case Deref:
			ex, err := evar(i.Ptr)
			if err != nil {
				return err
			}
			if err := ppo(ir.PredNotNull, ex, i.Line); err != nil {
				return err
			}
			if err := ppo(ir.PredValidMem, ex, i.Line); err != nil {
				return err
			}
		case IndexAccess:
			base, err := evar(i.Base)
			if err != nil {
				return err
			}
			index, err := evar(i.Index)
			if err != nil {
				return err
			}
			ex, err := d.Intern("expressions", []string{ir.TagIndex}, []int{base, index})
			if err != nil {
				return err
			}
			if err := ppo(ir.PredInBounds, ex, i.Line); err != nil {
				return err
			}
		case Divide:
			ex, err := evar(i.Divisor)
			if err != nil {
				return err
			}
			if err := ppo(ir.PredNotZero, ex, i.Line); err != nil {
				return err
			}
		case Call:
			f.EnsureCallsite(i.Callee, ir.Location{File: file, Line: i.Line})
		default:
			return fmt.Errorf("unknown instruction %T at line %d", in, in.instrLine())
		}
	}
	return nil
}

package smt

import (
	"fmt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

type Bool struct {
	name  string
	value yices2.TermT
}

func NewBoolVal(value bool) *Bool {
	if value {
		return &Bool{value: yices2.True()}
	}
	return &Bool{value: yices2.False()}
}

func NewBool(name string) *Bool {
	term := yices2.NewUninterpretedTerm(yices2.BoolType())
	errcode := yices2.SetTermName(term, name)
	if errcode < 0 {
		fmt.Println("set term name ", errcode)
	}
	return &Bool{
		name:  name,
		value: term,
	}
}

func NewBoolFromTerm(term yices2.TermT) *Bool {
	return &Bool{value: term}
}

func (b *Bool) Clone() *Bool {
	return &Bool{
		name:  b.name,
		value: b.value,
	}
}

// AsBitVec 布尔转成size宽度的bv，真1假0
func (b *Bool) AsBitVec(size uint32) *BitVec {
	term := yices2.Ite(b.value, yices2.BvconstInt64(size, 1), yices2.BvconstInt64(size, 0))
	return &BitVec{
		name:  b.name,
		value: term,
	}
}

func (b *Bool) GetRaw() yices2.TermT {
	return b.value
}

func (b *Bool) GetName() string {
	return b.name
}

func (b *Bool) Type() string {
	return BoolType
}

func (b *Bool) String() string {
	return yices2.TermToString(b.value, 512, 1, 0)
}

func (b *Bool) Not() *Bool {
	return &Bool{
		name:  "",
		value: yices2.Not(b.value),
	}
}

func (b *Bool) And(other *Bool) *Bool {
	return &Bool{
		name:  "",
		value: yices2.And2(b.value, other.value),
	}
}

func (b *Bool) Or(other *Bool) *Bool {
	return &Bool{
		name:  "",
		value: yices2.Or2(b.value, other.value),
	}
}

func (b *Bool) Implies(other *Bool) *Bool {
	return &Bool{
		name:  "",
		value: yices2.Implies(b.value, other.value),
	}
}

func (b *Bool) Iff(other *Bool) *Bool {
	return &Bool{
		name:  "",
		value: yices2.Iff(b.value, other.value),
	}
}

// Ands 合取一组布尔项，空表是true
func Ands(values ...*Bool) *Bool {
	if len(values) == 0 {
		return NewBoolVal(true)
	}
	terms := make([]yices2.TermT, len(values))
	for i := range values {
		terms[i] = values[i].GetRaw()
	}
	return &Bool{value: yices2.And(terms)}
}

func Ors(values ...*Bool) *Bool {
	if len(values) == 0 {
		return NewBoolVal(false)
	}
	terms := make([]yices2.TermT, len(values))
	for i := range values {
		terms[i] = values[i].GetRaw()
	}
	return &Bool{value: yices2.Or(terms)}
}

func (b *Bool) IsFalse() bool {
	var val int32
	errcode := yices2.BoolConstValue(b.value, &val)
	if errcode != 0 {
		fmt.Println(yices2.ErrorString())
	}
	return val == 0
}

func (b *Bool) IsTrue() bool {
	var val int32
	errcode := yices2.BoolConstValue(b.value, &val)
	if errcode != 0 {
		fmt.Println("errocode ", errcode, ", ", yices2.ErrorString(), ", type ", yices2.TypeOfTerm(b.value))
	}
	return val != 0
}

func (b *Bool) IsSymbolic() bool {
	termC := yices2.TermConstructor(b.value)
	return yices2.TrmCnstrBoolConstant != termC
}

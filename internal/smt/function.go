package smt

import (
	"fmt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

// Function dom1,dom2,dom3... -> rng
// 未解释函数，用来抽象调用效果（chaos summary）
type Function struct {
	name       string
	domain     []uint32
	valueRange uint32
	raw        yices2.TermT
}

func NewFunction(name string, domain []uint32, valueRange uint32) *Function {
	f := &Function{
		name:       name,
		domain:     make([]uint32, len(domain)),
		valueRange: valueRange,
	}
	copy(f.domain, domain)
	dom := make([]yices2.TypeT, len(domain))
	for i := range domain {
		dom[i] = yices2.BvType(domain[i])
	}
	funcType := yices2.FunctionType(dom, yices2.BvType(valueRange))
	f.raw = yices2.NewUninterpretedTerm(funcType)
	errcode := yices2.SetTermName(f.raw, name)
	if errcode < 0 {
		fmt.Println("set term name ", errcode)
	}
	return f
}

func (f *Function) Call(items ...*BitVec) *BitVec {
	terms := make([]yices2.TermT, len(items))
	for i := range items {
		terms[i] = items[i].GetRaw()
	}
	return NewBitVecFromTerm(yices2.Application(f.raw, terms))
}

func (f *Function) GetName() string {
	return f.name
}

func (f *Function) GetDomain() []uint32 {
	return f.domain
}

func (f *Function) GetRange() uint32 {
	return f.valueRange
}

func (f *Function) GetRaw() yices2.TermT {
	return f.raw
}

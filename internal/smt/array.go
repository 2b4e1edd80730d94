package smt

import (
	"fmt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

// Yices的Array通过function实现
// 内存建模: bv[addrWidth] -> bv[8]，一个地址一个byte

const ByteWidth = 8

// Array symbolic byte-addressable memory
type Array struct {
	name string
	dom  uint32
	rng  uint32
	term yices2.TermT
}

func NewArray(name string, dom, rng uint32) *Array {
	t1 := yices2.BvType(dom)
	t2 := yices2.BvType(rng)
	funcType := yices2.FunctionType1(t1, t2)
	term := yices2.NewUninterpretedTerm(funcType)
	errcode := yices2.SetTermName(term, name)
	if errcode < 0 {
		fmt.Println("set term name ", errcode)
	}
	return &Array{
		name: name,
		dom:  dom,
		rng:  rng,
		term: term,
	}
}

// NewMemArray 标准内存sort: 地址宽度addrWidth，按byte寻址
func NewMemArray(name string, addrWidth uint32) *Array {
	return NewArray(name, addrWidth, ByteWidth)
}

func NewArrayFromTerm(term yices2.TermT, dom, rng uint32) *Array {
	return &Array{
		dom:  dom,
		rng:  rng,
		term: term,
	}
}

func (array *Array) GetName() string {
	return array.name
}

func (array *Array) GetDomain() uint32 {
	return array.dom
}

func (array *Array) GetRange() uint32 {
	return array.rng
}

func (array *Array) GetRaw() yices2.TermT {
	return array.term
}

func (array *Array) Type() string {
	return ArrayType
}

func (array *Array) Select(index *BitVec) (*BitVec, error) {
	term := yices2.Application1(array.term, index.GetRaw())
	if term == yices2.NullTerm {
		return nil, fmt.Errorf("%s", yices2.ErrorString())
	}
	return NewBitVecFromTerm(term), nil
}

// Store 函数式更新，返回新的Array，原Array不变
// WP是从后向前替换项，内存项必须可持久化
func (array *Array) Store(index, value *BitVec) (*Array, error) {
	term := yices2.Update1(array.term, index.GetRaw(), value.GetRaw())
	if term == yices2.NullTerm {
		return nil, fmt.Errorf("array store: %s, index size %d, value size %d",
			yices2.ErrorString(), yices2.TermBitsize(index.GetRaw()), yices2.TermBitsize(value.GetRaw()))
	}
	return &Array{
		name: array.name,
		dom:  array.dom,
		rng:  array.rng,
		term: term,
	}, nil
}

func (array *Array) Eq(other *Array) *Bool {
	return &Bool{
		name:  "",
		value: yices2.Eq(array.term, other.term),
	}
}

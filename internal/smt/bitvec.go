package smt

import (
	"fmt"
	"math/big"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

const (
	BitVecType = "bitvec"
	BoolType   = "bool"
	ArrayType  = "array"
)

// BitVec 固定宽度的位向量项
// 宽度由IR给出，不做隐式扩展
type BitVec struct {
	name  string
	value yices2.TermT
}

func NewBitVec(name string, size uint32) *BitVec {
	term := yices2.NewUninterpretedTerm(yices2.BvType(size))
	errcode := yices2.SetTermName(term, name)
	if errcode < 0 {
		fmt.Println("set term name ", errcode)
	}
	return &BitVec{
		name:  name,
		value: term,
	}
}

func NewBitVecValInt64(value int64, size uint32) *BitVec {
	return &BitVec{
		name:  "",
		value: yices2.BvconstInt64(size, value),
	}
}

func NewBitVecVal(value *big.Int, size uint32) *BitVec {
	v := make([]int32, value.BitLen())
	for j := 0; j < value.BitLen(); j++ {
		v[j] = int32(value.Bit(j))
	}
	// padding
	if uint32(len(v)) < size {
		v = append(v, make([]int32, size-uint32(len(v)))...)
	}
	if uint32(len(v)) != size {
		panic(fmt.Errorf("bvsize not %d", size))
	}
	return &BitVec{
		name:  "",
		value: yices2.BvconstFromArray(v),
	}
}

func NewBitVecFromTerm(value yices2.TermT) *BitVec {
	return &BitVec{
		name:  "",
		value: value,
	}
}

func Concat(lhv, rhv *BitVec) *BitVec {
	return &BitVec{
		name:  "",
		value: yices2.Bvconcat2(lhv.value, rhv.value),
	}
}

// Concats 拼接一组bv，第一个参数是最高位
func Concats(values ...*BitVec) *BitVec {
	if len(values) == 0 {
		return nil
	}
	terms := make([]yices2.TermT, len(values))
	for i := range values {
		terms[i] = values[i].GetRaw()
	}
	return NewBitVecFromTerm(yices2.Bvconcat(terms))
}

func GetBigBvValue(value yices2.TermT) *big.Int {
	intVal := make([]int32, yices2.TermBitsize(value))
	errorcode := yices2.BvConstValue(value, intVal)
	if errorcode != 0 {
		fmt.Printf("BvConstValue %s, type %d, size %d\n",
			yices2.ErrorString(), yices2.TypeOfTerm(value), yices2.TermBitsize(value))
		return big.NewInt(0)
	}
	result := big.NewInt(0)
	for i := 0; i < len(intVal); i++ {
		result = result.SetBit(result, i, uint(intVal[i]))
	}
	return result
}

func (bv *BitVec) Clone() *BitVec {
	return &BitVec{
		name:  bv.name,
		value: bv.value,
	}
}

func (bv *BitVec) Type() string {
	return BitVecType
}

func (bv *BitVec) Size() uint32 {
	return yices2.TermBitsize(bv.value)
}

func (bv *BitVec) IsSymbolic() bool {
	return yices2.TermConstructor(bv.value) > 2
}

func (bv *BitVec) GetBigInt() *big.Int {
	return GetBigBvValue(bv.GetRaw())
}

func (bv *BitVec) Value() int64 {
	// 符号变量没有具体值
	return GetBigBvValue(bv.GetRaw()).Int64()
}

func (bv *BitVec) String() string {
	return yices2.TermToString(bv.value, 512, 1, 0)
}

func (bv *BitVec) GetRaw() yices2.TermT {
	return bv.value
}

func (bv *BitVec) GetName() string {
	return bv.name
}

// Concat 计算结果的size是两者之和
func (bv *BitVec) Concat(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvconcat2(bv.GetRaw(), other.GetRaw()),
	}
}

// Extract 截取[lo, hi]之间的bits，结果宽度hi-lo+1
func (bv *BitVec) Extract(lo, hi uint32) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvextract(bv.value, lo, hi),
	}
}

// ZeroExt 零扩展n bits
func (bv *BitVec) ZeroExt(n uint32) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.ZeroExtend(bv.value, n),
	}
}

// SignExt 符号扩展n bits
func (bv *BitVec) SignExt(n uint32) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.SignExtend(bv.value, n),
	}
}

func (bv *BitVec) Not() *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvnot(bv.value),
	}
}

func (bv *BitVec) Neg() *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvneg(bv.value),
	}
}

func (bv *BitVec) Add(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvadd(bv.value, other.value),
	}
}

func (bv *BitVec) Sub(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvsub(bv.value, other.value),
	}
}

func (bv *BitVec) Mul(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvmul(bv.value, other.value),
	}
}

func (bv *BitVec) UDiv(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvdiv(bv.value, other.value),
	}
}

func (bv *BitVec) SDiv(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvsdiv(bv.value, other.value),
	}
}

func (bv *BitVec) URem(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvrem(bv.value, other.value),
	}
}

func (bv *BitVec) SRem(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvsrem(bv.value, other.value),
	}
}

func (bv *BitVec) And(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvand2(bv.value, other.value),
	}
}

func (bv *BitVec) Or(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvor2(bv.value, other.value),
	}
}

func (bv *BitVec) Xor(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvxor2(bv.value, other.value),
	}
}

// Shl 逻辑左移
func (bv *BitVec) Shl(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvshl(bv.value, other.value),
	}
}

// Shr 逻辑右移
func (bv *BitVec) Shr(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvlshr(bv.value, other.value),
	}
}

// AShr 算术右移
func (bv *BitVec) AShr(other *BitVec) *BitVec {
	return &BitVec{
		name:  bv.name,
		value: yices2.Bvashr(bv.value, other.value),
	}
}

// Lt
// Bvs{xxxx} 有符号
// Bv{xxxx} 无符号
func (bv *BitVec) Lt(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvsltAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Ult(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvltAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Gt(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvsgtAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Ugt(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvgtAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Le(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvsleAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Ule(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvleAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Ge(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvsgeAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Uge(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvgeAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Eq(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BveqAtom(bv.value, other.value),
	}
}

func (bv *BitVec) Ne(other *BitVec) *Bool {
	return &Bool{
		name:  bv.name,
		value: yices2.BvneqAtom(bv.value, other.value),
	}
}

// AsBool 非零即真
func (bv *BitVec) AsBool() *Bool {
	zero := NewBitVecValInt64(0, bv.Size())
	return &Bool{
		name:  bv.name,
		value: yices2.BvneqAtom(bv.value, zero.value),
	}
}

// Ite cond为真取a，否则取b，a和b必须同宽
func Ite(cond *Bool, a, b *BitVec) *BitVec {
	return &BitVec{
		name:  "",
		value: yices2.Ite(cond.GetRaw(), a.GetRaw(), b.GetRaw()),
	}
}

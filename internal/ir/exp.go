package ir

import "math/big"

// IR表达式，lifter给出的中间表示
// 每个表达式带有明确的位宽，翻译层不做隐式转换

type Var struct {
	Name string `json:"name"`
	// Width 0 表示memory sort
	Width uint32 `json:"width"`
	IsMem bool   `json:"is_mem,omitempty"`
}

type BinOpKind string

const (
	OpAdd  BinOpKind = "add"
	OpSub  BinOpKind = "sub"
	OpMul  BinOpKind = "mul"
	OpDiv  BinOpKind = "div"  // unsigned
	OpSDiv BinOpKind = "sdiv" // signed
	OpMod  BinOpKind = "mod"
	OpSMod BinOpKind = "smod"
	OpAnd  BinOpKind = "and"
	OpOr   BinOpKind = "or"
	OpXor  BinOpKind = "xor"
	OpShl  BinOpKind = "shl"
	OpShr  BinOpKind = "shr"  // logical
	OpAShr BinOpKind = "ashr" // arithmetic
	OpEq   BinOpKind = "eq"
	OpNe   BinOpKind = "ne"
	OpLt   BinOpKind = "lt"  // unsigned
	OpLe   BinOpKind = "le"  // unsigned
	OpSLt  BinOpKind = "slt" // signed
	OpSLe  BinOpKind = "sle" // signed
)

type UnOpKind string

const (
	OpNeg UnOpKind = "neg"
	OpNot UnOpKind = "not"
)

type CastKind string

const (
	// CastLow 截取低位
	CastLow CastKind = "low"
	// CastHigh 截取高位
	CastHigh CastKind = "high"
	// CastUnsigned 零扩展
	CastUnsigned CastKind = "unsigned"
	// CastSigned 符号扩展
	CastSigned CastKind = "signed"
)

type Exp interface {
	isExp()
}

type Const struct {
	Val   *big.Int
	Width uint32
}

type VarRef struct {
	Var Var
}

type BinOp struct {
	Op   BinOpKind
	L, R Exp
}

type UnOp struct {
	Op UnOpKind
	E  Exp
}

type Cast struct {
	Kind  CastKind
	Width uint32
	E     Exp
}

// Load 从内存读Bytes个字节
type Load struct {
	Mem    Exp
	Addr   Exp
	Endian Endian
	Bytes  uint32
}

// Store 返回更新后的内存
type Store struct {
	Mem    Exp
	Addr   Exp
	Val    Exp
	Endian Endian
	Bytes  uint32
}

type IteExp struct {
	Cond Exp
	Then Exp
	Else Exp
}

// Unknown 不确定值（lifter对未建模指令的产物）
// 每次翻译分配一个新鲜符号
type Unknown struct {
	Hint  string
	Width uint32
}

func (Const) isExp()   {}
func (VarRef) isExp()  {}
func (BinOp) isExp()   {}
func (UnOp) isExp()    {}
func (Cast) isExp()    {}
func (Load) isExp()    {}
func (Store) isExp()   {}
func (IteExp) isExp()  {}
func (Unknown) isExp() {}

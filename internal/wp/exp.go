package wp

import (
	"math/big"

	"github.com/pkg/errors"

	"wpcheck/internal/ir"
	"wpcheck/internal/smt"
)

// 表达式翻译层: IR表达式 -> 求解器项 + side obligations
// 比较运算返回Bool，其他返回BitVec，交界处显式coerce

// Hooks 翻译一个表达式产生的assume/verify项
type Hooks struct {
	Assumes  []*smt.Bool
	Verifies []*Goal
}

func newHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) merge(other *Hooks) {
	if other == nil {
		return
	}
	h.Assumes = append(h.Assumes, other.Assumes...)
	h.Verifies = append(h.Verifies, other.Verifies...)
}

func (h *Hooks) add(hook *CondHook, point string) {
	if hook == nil {
		return
	}
	if hook.Assume != nil {
		h.Assumes = append(h.Assumes, hook.Assume)
	}
	if hook.Verify != nil {
		goal := *hook.Verify
		if goal.Point == "" {
			goal.Point = point
		}
		h.Verifies = append(h.Verifies, &goal)
	}
}

func (h *Hooks) Empty() bool {
	return len(h.Assumes) == 0 && len(h.Verifies) == 0
}

// ExpToTerm 翻译表达式
// 翻译失败（未绑定变量、宽度不匹配、不支持的算子）是硬错误，不做隐式修补
func ExpToTerm(env *Env, e ir.Exp) (smt.Term, *Hooks, error) {
	env.TransCount++
	hooks := newHooks()
	term, err := expToTerm(env, e, hooks, "")
	if err != nil {
		return nil, nil, err
	}
	return term, hooks, nil
}

// ExpToTermAt 带程序点的翻译，verify义务携带溯源信息
func ExpToTermAt(env *Env, e ir.Exp, point string) (smt.Term, *Hooks, error) {
	env.TransCount++
	hooks := newHooks()
	term, err := expToTerm(env, e, hooks, point)
	if err != nil {
		return nil, nil, err
	}
	return term, hooks, nil
}

func expToTerm(env *Env, e ir.Exp, hooks *Hooks, point string) (smt.Term, error) {
	switch exp := e.(type) {
	case *ir.Const:
		if exp.Width == 0 {
			return nil, errors.Errorf("constant %s has zero width", exp.Val)
		}
		// 截断到声明宽度，算术按模2^width回绕
		val := new(big.Int).Mod(exp.Val, new(big.Int).Lsh(big.NewInt(1), uint(exp.Width)))
		return smt.NewBitVecVal(val, exp.Width), nil

	case *ir.VarRef:
		return env.Lookup(exp.Var.Name)

	case *ir.BinOp:
		return binOpToTerm(env, exp, hooks, point)

	case *ir.UnOp:
		sub, err := expToTerm(env, exp.E, hooks, point)
		if err != nil {
			return nil, err
		}
		switch exp.Op {
		case ir.OpNeg:
			bv, err := termAsBitVec(sub)
			if err != nil {
				return nil, err
			}
			return bv.Neg(), nil
		case ir.OpNot:
			if b, ok := sub.(*smt.Bool); ok {
				return b.Not(), nil
			}
			bv, err := termAsBitVec(sub)
			if err != nil {
				return nil, err
			}
			return bv.Not(), nil
		}
		return nil, errors.Errorf("unsupported unop %q", exp.Op)

	case *ir.Cast:
		return castToTerm(env, exp, hooks, point)

	case *ir.Load:
		return loadToTerm(env, exp, hooks, point)

	case *ir.Store:
		return storeToTerm(env, exp, hooks, point)

	case *ir.IteExp:
		condTerm, err := expToTerm(env, exp.Cond, hooks, point)
		if err != nil {
			return nil, err
		}
		// 两个分支都完整翻译，不做短路剪枝
		thenTerm, err := expToTerm(env, exp.Then, hooks, point)
		if err != nil {
			return nil, err
		}
		elseTerm, err := expToTerm(env, exp.Else, hooks, point)
		if err != nil {
			return nil, err
		}
		cond, err := termAsBool(condTerm)
		if err != nil {
			return nil, err
		}
		a, err := termAsBitVec(thenTerm)
		if err != nil {
			return nil, err
		}
		b, err := termAsBitVec(elseTerm)
		if err != nil {
			return nil, err
		}
		if a.Size() != b.Size() {
			return nil, errors.Errorf("ite branches differ in width: %d vs %d", a.Size(), b.Size())
		}
		return smt.Ite(cond, a, b), nil

	case *ir.Unknown:
		if exp.Width == 0 {
			return nil, errors.Errorf("unknown %q has zero width", exp.Hint)
		}
		base := exp.Hint
		if base == "" {
			base = "unknown"
		}
		return env.FreshBitVec(base, exp.Width), nil
	}
	return nil, errors.Errorf("unsupported expression %T", e)
}

func binOpToTerm(env *Env, exp *ir.BinOp, hooks *Hooks, point string) (smt.Term, error) {
	l, err := expToTerm(env, exp.L, hooks, point)
	if err != nil {
		return nil, err
	}
	r, err := expToTerm(env, exp.R, hooks, point)
	if err != nil {
		return nil, err
	}
	lv, err := termAsBitVec(l)
	if err != nil {
		return nil, err
	}
	rv, err := termAsBitVec(r)
	if err != nil {
		return nil, err
	}
	if lv.Size() != rv.Size() {
		return nil, errors.Errorf("binop %q: width mismatch %d vs %d", exp.Op, lv.Size(), rv.Size())
	}

	runConds(env, exp, []smt.Term{lv, rv}, hooks, point)

	switch exp.Op {
	case ir.OpAdd:
		return lv.Add(rv), nil
	case ir.OpSub:
		return lv.Sub(rv), nil
	case ir.OpMul:
		return lv.Mul(rv), nil
	case ir.OpDiv:
		return lv.UDiv(rv), nil
	case ir.OpSDiv:
		return lv.SDiv(rv), nil
	case ir.OpMod:
		return lv.URem(rv), nil
	case ir.OpSMod:
		return lv.SRem(rv), nil
	case ir.OpAnd:
		return lv.And(rv), nil
	case ir.OpOr:
		return lv.Or(rv), nil
	case ir.OpXor:
		return lv.Xor(rv), nil
	case ir.OpShl:
		return lv.Shl(rv), nil
	case ir.OpShr:
		return lv.Shr(rv), nil
	case ir.OpAShr:
		return lv.AShr(rv), nil
	case ir.OpEq:
		return lv.Eq(rv), nil
	case ir.OpNe:
		return lv.Ne(rv), nil
	case ir.OpLt:
		return lv.Ult(rv), nil
	case ir.OpLe:
		return lv.Ule(rv), nil
	case ir.OpSLt:
		return lv.Lt(rv), nil
	case ir.OpSLe:
		return lv.Le(rv), nil
	}
	return nil, errors.Errorf("unsupported binop %q", exp.Op)
}

func castToTerm(env *Env, exp *ir.Cast, hooks *Hooks, point string) (smt.Term, error) {
	sub, err := expToTerm(env, exp.E, hooks, point)
	if err != nil {
		return nil, err
	}
	bv, err := termAsBitVec(sub)
	if err != nil {
		return nil, err
	}
	from, to := bv.Size(), exp.Width
	switch exp.Kind {
	case ir.CastLow:
		if to > from {
			return nil, errors.Errorf("low cast widens %d -> %d", from, to)
		}
		return bv.Extract(0, to-1), nil
	case ir.CastHigh:
		if to > from {
			return nil, errors.Errorf("high cast widens %d -> %d", from, to)
		}
		return bv.Extract(from-to, from-1), nil
	case ir.CastUnsigned:
		if to < from {
			return nil, errors.Errorf("unsigned cast narrows %d -> %d", from, to)
		}
		return bv.ZeroExt(to - from), nil
	case ir.CastSigned:
		if to < from {
			return nil, errors.Errorf("signed cast narrows %d -> %d", from, to)
		}
		return bv.SignExt(to - from), nil
	}
	return nil, errors.Errorf("unsupported cast %q", exp.Kind)
}

// loadToTerm 按byte分解读内存，按声明的字节序拼接
func loadToTerm(env *Env, exp *ir.Load, hooks *Hooks, point string) (smt.Term, error) {
	memTerm, err := expToTerm(env, exp.Mem, hooks, point)
	if err != nil {
		return nil, err
	}
	mem, ok := memTerm.(*smt.Array)
	if !ok {
		return nil, errors.New("load from non-memory term")
	}
	addrTerm, err := expToTerm(env, exp.Addr, hooks, point)
	if err != nil {
		return nil, err
	}
	addrBv, err := termAsBitVec(addrTerm)
	if err != nil {
		return nil, err
	}
	addr := translateAddr(env, addrBv)
	if exp.Bytes == 0 {
		return nil, errors.New("load of zero bytes")
	}

	runConds(env, exp, []smt.Term{mem, addr}, hooks, point)

	// Concats第一个参数是最高位byte
	bytes := make([]*smt.BitVec, exp.Bytes)
	for i := uint32(0); i < exp.Bytes; i++ {
		byteAddr := addr.Add(smt.NewBitVecValInt64(int64(i), addr.Size()))
		b, err := mem.Select(byteAddr)
		if err != nil {
			return nil, errors.Wrap(err, "mem select")
		}
		if exp.Endian == ir.LittleEndian {
			bytes[exp.Bytes-1-i] = b
		} else {
			bytes[i] = b
		}
	}
	return smt.Concats(bytes...), nil
}

// storeToTerm 按byte分解写内存，返回更新后的内存项
func storeToTerm(env *Env, exp *ir.Store, hooks *Hooks, point string) (smt.Term, error) {
	memTerm, err := expToTerm(env, exp.Mem, hooks, point)
	if err != nil {
		return nil, err
	}
	mem, ok := memTerm.(*smt.Array)
	if !ok {
		return nil, errors.New("store to non-memory term")
	}
	addrTerm, err := expToTerm(env, exp.Addr, hooks, point)
	if err != nil {
		return nil, err
	}
	addrBv, err := termAsBitVec(addrTerm)
	if err != nil {
		return nil, err
	}
	addr := translateAddr(env, addrBv)
	valTerm, err := expToTerm(env, exp.Val, hooks, point)
	if err != nil {
		return nil, err
	}
	val, err := termAsBitVec(valTerm)
	if err != nil {
		return nil, err
	}
	if exp.Bytes == 0 || val.Size() != exp.Bytes*smt.ByteWidth {
		return nil, errors.Errorf("store of %d bytes with %d-bit value", exp.Bytes, val.Size())
	}

	runConds(env, exp, []smt.Term{mem, addr, val}, hooks, point)

	cur := mem
	for i := uint32(0); i < exp.Bytes; i++ {
		// 第i个最低位byte
		b := val.Extract(i*smt.ByteWidth, i*smt.ByteWidth+smt.ByteWidth-1)
		var offset uint32
		if exp.Endian == ir.LittleEndian {
			offset = i
		} else {
			offset = exp.Bytes - 1 - i
		}
		byteAddr := addr.Add(smt.NewBitVecValInt64(int64(offset), addr.Size()))
		cur, err = cur.Store(byteAddr, b)
		if err != nil {
			return nil, errors.Wrap(err, "mem store")
		}
	}
	return cur, nil
}

// translateAddr 比较模式下两个binary基址不同时的地址平移
func translateAddr(env *Env, addr *smt.BitVec) *smt.BitVec {
	if env.MemOffset == 0 {
		return addr
	}
	return addr.Add(smt.NewBitVecValInt64(env.MemOffset, addr.Size()))
}

func runConds(env *Env, e ir.Exp, args []smt.Term, hooks *Hooks, point string) {
	for _, cond := range env.expConds {
		hooks.add(cond(env, e, args), point)
	}
}

// termAsBool 位向量按非零即真coerce
// memory-sorted项出现在标量位置是输入畸形，硬错误
func termAsBool(t smt.Term) (*smt.Bool, error) {
	switch v := t.(type) {
	case *smt.Bool:
		return v, nil
	case *smt.BitVec:
		return v.AsBool(), nil
	}
	return nil, errors.Errorf("memory-sorted term %q in scalar position", t.GetName())
}

// termAsBitVec 布尔按真1假0 coerce成1bit向量
func termAsBitVec(t smt.Term) (*smt.BitVec, error) {
	switch v := t.(type) {
	case *smt.BitVec:
		return v, nil
	case *smt.Bool:
		return v.AsBitVec(1), nil
	}
	return nil, errors.Errorf("memory-sorted term %q in scalar position", t.GetName())
}

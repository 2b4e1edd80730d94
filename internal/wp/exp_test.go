package wp

import (
	"math/big"
	"testing"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpcheck/internal/ir"
	"wpcheck/internal/smt"
)

func newTestEnv(t *testing.T) *Env {
	prog := &ir.Program{Arch: testArch()}
	env := NewEnv(prog, "")
	env.BindRegisters()
	return env
}

func TestExpConstWraps(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	term, hooks, err := ExpToTerm(env, &ir.Const{Val: big.NewInt(300), Width: 8})
	require.Nil(t, err)
	assert.True(t, hooks.Empty())
	bv := term.(*smt.BitVec)
	assert.Equal(t, uint32(8), bv.Size())
	assert.Equal(t, int64(300%256), bv.Value())

	_, _, err = ExpToTerm(env, &ir.Const{Val: big.NewInt(1), Width: 0})
	assert.NotNil(t, err)
}

func TestExpUnboundVar(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	_, _, err := ExpToTerm(env, &ir.VarRef{Var: ir.Var{Name: "no_such_reg", Width: 64}})
	require.NotNil(t, err)
	assert.Equal(t, ErrUnbound, errors.Cause(err))
}

func TestExpWidthMismatch(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	_, _, err := ExpToTerm(env, &ir.BinOp{Op: ir.OpAdd, L: regRef("r0"), R: intConst(1, 8)})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "width mismatch")
}

func TestExpDivisorObligation(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	_, hooks, err := ExpToTerm(env, &ir.BinOp{Op: ir.OpDiv, L: regRef("r0"), R: regRef("r1")})
	require.Nil(t, err)
	require.Len(t, hooks.Verifies, 1)
	assert.Equal(t, "nonzero divisor", hooks.Verifies[0].Name)

	// 加法不产生义务
	_, hooks, err = ExpToTerm(env, &ir.BinOp{Op: ir.OpAdd, L: regRef("r0"), R: regRef("r1")})
	require.Nil(t, err)
	assert.True(t, hooks.Empty())
}

func TestExpCasts(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	term, _, err := ExpToTerm(env, &ir.Cast{Kind: ir.CastLow, Width: 8, E: intConst(0x1234, 16)})
	require.Nil(t, err)
	assert.Equal(t, int64(0x34), term.(*smt.BitVec).Value())

	term, _, err = ExpToTerm(env, &ir.Cast{Kind: ir.CastHigh, Width: 8, E: intConst(0x1234, 16)})
	require.Nil(t, err)
	assert.Equal(t, int64(0x12), term.(*smt.BitVec).Value())

	term, _, err = ExpToTerm(env, &ir.Cast{Kind: ir.CastUnsigned, Width: 16, E: intConst(0xFF, 8)})
	require.Nil(t, err)
	assert.Equal(t, int64(0xFF), term.(*smt.BitVec).Value())

	term, _, err = ExpToTerm(env, &ir.Cast{Kind: ir.CastSigned, Width: 16, E: intConst(0xFF, 8)})
	require.Nil(t, err)
	assert.Equal(t, int64(0xFFFF), term.(*smt.BitVec).Value())

	_, _, err = ExpToTerm(env, &ir.Cast{Kind: ir.CastLow, Width: 32, E: intConst(1, 16)})
	assert.NotNil(t, err)
	_, _, err = ExpToTerm(env, &ir.Cast{Kind: ir.CastUnsigned, Width: 8, E: intConst(1, 16)})
	assert.NotNil(t, err)
}

func TestExpLoadAfterStore(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	memRef := &ir.VarRef{Var: ir.Var{Name: MemVar, IsMem: true}}
	for _, endian := range []ir.Endian{ir.LittleEndian, ir.BigEndian} {
		env := NewEnv(&ir.Program{Arch: testArch()}, endian.String())
		env.BindRegisters()

		store := &ir.Store{
			Mem:    memRef,
			Addr:   intConst(0x100, 64),
			Val:    intConst(0xBEEF, 16),
			Endian: endian,
			Bytes:  2,
		}
		load := &ir.Load{Mem: store, Addr: intConst(0x100, 64), Endian: endian, Bytes: 2}

		term, _, err := ExpToTerm(env, load)
		require.Nil(t, err)
		bv := term.(*smt.BitVec)
		require.Equal(t, uint32(16), bv.Size())

		// 同字节序写后读回原值
		solver := smt.NewSolver()
		require.Nil(t, solver.Assert(bv.Ne(smt.NewBitVecValInt64(0xBEEF, 16))))
		status, _, err := solver.Check()
		require.Nil(t, err)
		assert.Equal(t, smt.StatusUnsat, status, "endian %s", endian)
		solver.Close()
	}
}

func TestExpMemOffset(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)
	env.MemOffset = 0x10

	memRef := &ir.VarRef{Var: ir.Var{Name: MemVar, IsMem: true}}
	store := &ir.Store{
		Mem:    memRef,
		Addr:   intConst(0x100, 64),
		Val:    intConst(0xAB, 8),
		Endian: ir.LittleEndian,
		Bytes:  1,
	}
	term, _, err := ExpToTerm(env, store)
	require.Nil(t, err)
	arr := term.(*smt.Array)

	// 平移后的地址才命中写入的byte
	got, err := arr.Select(smt.NewBitVecValInt64(0x110, 64))
	require.Nil(t, err)
	solver := smt.NewSolver()
	defer solver.Close()
	require.Nil(t, solver.Assert(got.Ne(smt.NewBitVecValInt64(0xAB, 8))))
	status, _, err := solver.Check()
	require.Nil(t, err)
	assert.Equal(t, smt.StatusUnsat, status)
}

func TestExpIteWidthMismatch(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	_, _, err := ExpToTerm(env, &ir.IteExp{
		Cond: intConst(1, 1),
		Then: intConst(1, 8),
		Else: intConst(2, 16),
	})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "width")
}

// memory-sorted项落在标量位置必须是硬错误，不能panic
func TestExpMemInScalarPosition(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	memRef := &ir.VarRef{Var: ir.Var{Name: MemVar, IsMem: true}}

	_, _, err := ExpToTerm(env, &ir.BinOp{Op: ir.OpAdd, L: memRef, R: regRef("r0")})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "scalar position")

	_, _, err = ExpToTerm(env, &ir.Cast{Kind: ir.CastLow, Width: 8, E: memRef})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "scalar position")

	_, _, err = ExpToTerm(env, &ir.IteExp{Cond: memRef, Then: intConst(1, 8), Else: intConst(2, 8)})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "scalar position")

	_, _, err = ExpToTerm(env, &ir.UnOp{Op: ir.OpNeg, E: memRef})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "scalar position")

	_, _, err = ExpToTerm(env, &ir.Load{Mem: memRef, Addr: memRef, Endian: ir.LittleEndian, Bytes: 1})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "scalar position")
}

func TestExpMemSafetyObligations(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)
	env.AddExpCond(CondNullDeref())
	env.AddExpCond(CondOutOfBounds())

	memRef := &ir.VarRef{Var: ir.Var{Name: MemVar, IsMem: true}}
	load := &ir.Load{Mem: memRef, Addr: regRef("r0"), Endian: ir.LittleEndian, Bytes: 1}

	_, hooks, err := ExpToTerm(env, load)
	require.Nil(t, err)
	var names []string
	for _, g := range hooks.Verifies {
		names = append(names, g.Name)
	}
	assert.Contains(t, names, "non-null address")
	assert.Contains(t, names, "address in bounds")

	// 默认不开启时访存不产生义务
	env = newTestEnv(t)
	_, hooks, err = ExpToTerm(env, load)
	require.Nil(t, err)
	assert.True(t, hooks.Empty())
}

func TestExpUnknownFresh(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()
	env := newTestEnv(t)

	a, _, err := ExpToTerm(env, &ir.Unknown{Hint: "cpuid", Width: 64})
	require.Nil(t, err)
	b, _, err := ExpToTerm(env, &ir.Unknown{Hint: "cpuid", Width: 64})
	require.Nil(t, err)
	assert.NotEqual(t, a.GetName(), b.GetName())

	_, _, err = ExpToTerm(env, &ir.Unknown{Hint: "x", Width: 0})
	assert.NotNil(t, err)
}

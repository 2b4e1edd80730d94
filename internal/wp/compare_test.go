package wp

import (
	"testing"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpcheck/internal/ir"
)

// addPair 构造一个r0 += n的子程序和它的独立环境
func addPair(ns string, n int64) *SubPair {
	prog := singleSub("f", &ir.Block{
		ID: "b0",
		Stmts: []ir.Stmt{
			defReg("t0", "r0", &ir.BinOp{Op: ir.OpAdd, L: regRef("r0"), R: intConst(n, 64)}),
			retJmp("t1"),
		},
	})
	env := NewEnv(prog, ns)
	env.BindRegisters()
	return &SubPair{Sub: prog.Subs[0], Env: env}
}

func callPair(ns, callee string) *SubPair {
	prog := singleSub("f",
		&ir.Block{ID: "b0", Stmts: []ir.Stmt{callJmp("t0", callee, "b1")}, Succs: []string{"b1"}},
		&ir.Block{ID: "b1", Stmts: []ir.Stmt{retJmp("t1")}},
	)
	env := NewEnv(prog, ns)
	env.BindRegisters()
	return &SubPair{Sub: prog.Subs[0], Env: env}
}

func TestCompareSubsEqProved(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := addPair("orig", 1)
	mod := addPair("mod", 1)
	comps := []*Comparator{CompareSubsEq([]string{"r0"}, []string{"r0"})}

	final, err := CompareSubs(comps, orig, mod)
	require.Nil(t, err)
	verdict, _ := solveRefute(t, final)
	assert.Equal(t, VerdictProved, verdict)
}

func TestCompareSubsEqRefuted(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := addPair("orig", 1)
	mod := addPair("mod", 2)
	comps := []*Comparator{CompareSubsEq([]string{"r0"}, []string{"r0"})}

	final, err := CompareSubs(comps, orig, mod)
	require.Nil(t, err)
	verdict, model := solveRefute(t, final)
	assert.Equal(t, VerdictRefuted, verdict)
	require.NotNil(t, model)
}

// 入口假设缺失时不相等不可证
func TestCompareSubsEqNoHyp(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := addPair("orig", 1)
	mod := addPair("mod", 1)
	comps := []*Comparator{CompareSubsEq(nil, []string{"r0"})}

	final, err := CompareSubs(comps, orig, mod)
	require.Nil(t, err)
	verdict, _ := solveRefute(t, final)
	assert.Equal(t, VerdictRefuted, verdict)
}

func TestCompareEmptyPost(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := addPair("orig", 1)
	mod := addPair("mod", 7)
	comps := []*Comparator{CompareSubsEmptyPost()}

	final, err := CompareSubs(comps, orig, mod)
	require.Nil(t, err)
	verdict, _ := solveRefute(t, final)
	assert.Equal(t, VerdictProved, verdict)
}

func TestCompareFuncCallsPreserved(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := callPair("orig", "memcpy")
	mod := callPair("mod", "memcpy")
	comps := []*Comparator{CompareSubsEmptyPost(), CompareFuncCalls()}

	final, err := CompareSubs(comps, orig, mod)
	require.Nil(t, err)
	verdict, _ := solveRefute(t, final)
	assert.Equal(t, VerdictProved, verdict)
}

func TestCompareFuncCallsDiffer(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := callPair("orig", "memcpy")
	mod := callPair("mod", "strcpy")
	comps := []*Comparator{CompareSubsEmptyPost(), CompareFuncCalls()}

	final, err := CompareSubs(comps, orig, mod)
	require.Nil(t, err)
	verdict, _ := solveRefute(t, final)
	assert.Equal(t, VerdictRefuted, verdict)
}

func TestComparePointerHypsUnknownReg(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := addPair("orig", 1)
	mod := addPair("mod", 1)
	comps := []*Comparator{CompareSubsEmptyPost(), ComparePointerHyps([]string{"no_such"})}

	_, err := CompareSubs(comps, orig, mod)
	assert.NotNil(t, err)
}

func TestCompareNoComparators(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := addPair("orig", 1)
	mod := addPair("mod", 1)
	_, err := CompareSubs(nil, orig, mod)
	assert.NotNil(t, err)
}

func TestCompareSPBoundsHyp(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	orig := addPair("orig", 1)
	mod := addPair("mod", 1)
	comps := []*Comparator{CompareSubsEmptyPost(), CompareSPBounds(), CompareMemEq()}

	final, err := CompareSubs(comps, orig, mod)
	require.Nil(t, err)
	verdict, _ := solveRefute(t, final)
	assert.Equal(t, VerdictProved, verdict)
}

func TestSameSymSet(t *testing.T) {
	assert.True(t, sameSymSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameSymSet([]string{"a"}, []string{"b"}))
	assert.False(t, sameSymSet([]string{"a"}, []string{"a", "b"}))
	assert.True(t, sameSymSet(nil, nil))
}

package wp

import (
	"testing"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpcheck/internal/smt"
)

func assertValid(t *testing.T, formula *smt.Bool) {
	solver := smt.NewSolver()
	defer solver.Close()
	require.Nil(t, solver.Assert(formula.Not()))
	status, _, err := solver.Check()
	require.Nil(t, err)
	assert.Equal(t, smt.StatusUnsat, status)
}

func TestConstrFlatten(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	x := smt.NewBitVec("c_x", 64)
	one := smt.NewBitVecValInt64(1, 64)

	leaf := NewGoal("leaf", x.Eq(one))
	assert.True(t, leaf.IsGoal())
	assert.Equal(t, "leaf", leaf.Goal().Name)

	// 恒假假设使clause整体有效
	vacuous := NewClause(
		[]*Constr{NewGoal("hyp", smt.NewBoolVal(false))},
		[]*Constr{NewGoal("goal", x.Eq(one))},
	)
	assertValid(t, vacuous.Flatten())

	// 空hyps等于goals合取
	conj := NewClause(nil, []*Constr{Trivial(), Trivial()})
	assertValid(t, conj.Flatten())
}

func TestConstrSubst(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	x := smt.NewBitVec("su_x", 64)
	y := smt.NewBitVec("su_y", 64)
	one := smt.NewBitVecValInt64(1, 64)

	c := NewClause(
		[]*Constr{NewGoal("hyp", x.Ugt(one))},
		[]*Constr{NewGoalAt("goal", x.Eq(one), "t0")},
	)
	replaced, err := c.Subst([]smt.Term{x}, []smt.Term{y})
	require.Nil(t, err)

	// 替换后的公式不再依赖x
	solver := smt.NewSolver()
	defer solver.Close()
	require.Nil(t, solver.Assert(
		replaced.Flatten().Iff(y.Ugt(one).Implies(y.Eq(one))).Not(),
	))
	status, _, err := solver.Check()
	require.Nil(t, err)
	assert.Equal(t, smt.StatusUnsat, status)
}

func TestConstrSubstKeepsPoint(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	x := smt.NewBitVec("pt_x", 64)
	y := smt.NewBitVec("pt_y", 64)
	c := NewGoalAt("goal", x.Eq(y), "t42")
	replaced, err := c.Subst([]smt.Term{x}, []smt.Term{y})
	require.Nil(t, err)
	require.True(t, replaced.IsGoal())
	assert.Equal(t, "t42", replaced.Goal().Point)
}

func TestConstrStats(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	tr := smt.NewBoolVal(true)
	c := NewClause(
		[]*Constr{NewGoal("h", tr)},
		[]*Constr{
			NewGoal("g1", tr),
			NewClause(nil, []*Constr{NewGoal("g2", tr)}),
		},
	)
	goals, depth := c.Stats()
	assert.Equal(t, 3, goals)
	assert.Equal(t, 3, depth)
}

func TestConstrString(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	c := NewClause(
		[]*Constr{NewGoal("hyp", smt.NewBoolVal(true))},
		[]*Constr{NewGoalAt("target", smt.NewBoolVal(true), "t7")},
	)
	s := c.String()
	assert.Contains(t, s, "hyp")
	assert.Contains(t, s, "target @t7")
}

func TestCheckRefutation(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	x := smt.NewBitVec("ck_x", 64)

	solver := smt.NewSolver()
	verdict, model, err := Check(solver, NewGoal("tautology", x.Eq(x)), true)
	require.Nil(t, err)
	assert.Equal(t, VerdictProved, verdict)
	assert.Nil(t, model)
	solver.Close()

	solver = smt.NewSolver()
	defer solver.Close()
	one := smt.NewBitVecValInt64(1, 64)
	verdict, model, err = Check(solver, NewGoal("falsifiable", x.Eq(one)), true)
	require.Nil(t, err)
	assert.Equal(t, VerdictRefuted, verdict)
	require.NotNil(t, model)
	val, err := model.BvValue(x)
	require.Nil(t, err)
	assert.NotEqual(t, int64(1), val.Int64())
}

func TestExcludeEnumeratesModels(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	x := smt.NewBitVec("ex_x", 64)
	vars := map[string]*smt.BitVec{"x": x}

	solver := smt.NewSolver()
	defer solver.Close()
	verdict, model, err := Check(solver, NewGoal("g", x.Eq(smt.NewBitVecValInt64(42, 64))), true)
	require.Nil(t, err)
	require.Equal(t, VerdictRefuted, verdict)
	first, err := model.BvValue(x)
	require.Nil(t, err)

	verdict, next, err := Exclude(solver, model, vars)
	require.Nil(t, err)
	require.Equal(t, VerdictRefuted, verdict)
	second, err := next.BvValue(x)
	require.Nil(t, err)
	assert.NotEqual(t, first, second)

	_, _, err = Exclude(solver, model, nil)
	assert.NotNil(t, err)
}

package wp

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"wpcheck/internal/smt"
)

// Constr 约束树
// 叶子是Goal，内部节点是Clause: hypotheses => conjunction(goals)
// 不可变，回溯过程中自底向上组合，求解前Flatten

type Goal struct {
	Name string
	Cond *smt.Bool
	// Point 产生该目标的程序点（语句TID），反例溯源用
	Point string
}

type Constr struct {
	goal  *Goal
	hyps  []*Constr
	goals []*Constr
}

func NewGoal(name string, cond *smt.Bool) *Constr {
	return &Constr{goal: &Goal{Name: name, Cond: cond}}
}

func NewGoalAt(name string, cond *smt.Bool, point string) *Constr {
	return &Constr{goal: &Goal{Name: name, Cond: cond, Point: point}}
}

// NewClause hyps为空等价于goals的合取
func NewClause(hyps, goals []*Constr) *Constr {
	return &Constr{hyps: hyps, goals: goals}
}

// Trivial 恒真前置条件
func Trivial() *Constr {
	return NewGoal("trivial", smt.NewBoolVal(true))
}

func (c *Constr) IsGoal() bool {
	return c.goal != nil
}

func (c *Constr) Goal() *Goal {
	return c.goal
}

// Flatten 折叠成单个布尔项
func (c *Constr) Flatten() *smt.Bool {
	if c.goal != nil {
		return c.goal.Cond
	}
	goals := make([]*smt.Bool, len(c.goals))
	for i := range c.goals {
		goals[i] = c.goals[i].Flatten()
	}
	conclusion := smt.Ands(goals...)
	if len(c.hyps) == 0 {
		return conclusion
	}
	hyps := make([]*smt.Bool, len(c.hyps))
	for i := range c.hyps {
		hyps[i] = c.hyps[i].Flatten()
	}
	return smt.Ands(hyps...).Implies(conclusion)
}

// Subst 整棵树做替换，返回新树
func (c *Constr) Subst(vars, vals []smt.Term) (*Constr, error) {
	if c.goal != nil {
		cond, err := smt.SubstBool(c.goal.Cond, vars, vals)
		if err != nil {
			return nil, errors.Wrapf(err, "goal %s", c.goal.Name)
		}
		return &Constr{goal: &Goal{Name: c.goal.Name, Cond: cond, Point: c.goal.Point}}, nil
	}
	result := &Constr{
		hyps:  make([]*Constr, len(c.hyps)),
		goals: make([]*Constr, len(c.goals)),
	}
	for i := range c.hyps {
		h, err := c.hyps[i].Subst(vars, vals)
		if err != nil {
			return nil, err
		}
		result.hyps[i] = h
	}
	for i := range c.goals {
		g, err := c.goals[i].Subst(vars, vals)
		if err != nil {
			return nil, err
		}
		result.goals[i] = g
	}
	return result, nil
}

// Stats 统计goal数和深度，给输出层用
func (c *Constr) Stats() (goals, depth int) {
	if c.goal != nil {
		return 1, 1
	}
	maxDepth := 0
	for _, sub := range append(append([]*Constr{}, c.hyps...), c.goals...) {
		g, d := sub.Stats()
		goals += g
		if d > maxDepth {
			maxDepth = d
		}
	}
	return goals, maxDepth + 1
}

func (c *Constr) String() string {
	var sb strings.Builder
	c.dump(&sb, 0)
	return sb.String()
}

func (c *Constr) dump(sb *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	if c.goal != nil {
		fmt.Fprintf(sb, "%sgoal %s", pad, c.goal.Name)
		if c.goal.Point != "" {
			fmt.Fprintf(sb, " @%s", c.goal.Point)
		}
		sb.WriteString("\n")
		return
	}
	fmt.Fprintf(sb, "%sclause (%d hyps)\n", pad, len(c.hyps))
	for _, h := range c.hyps {
		h.dump(sb, indent+1)
	}
	fmt.Fprintf(sb, "%s=>\n", pad)
	for _, g := range c.goals {
		g.dump(sb, indent+1)
	}
}

// Verdict 求解结论
type Verdict int

const (
	VerdictProved Verdict = iota
	VerdictRefuted
	VerdictUnknown
)

func (v Verdict) String() string {
	switch v {
	case VerdictProved:
		return "proved"
	case VerdictRefuted:
		return "refuted"
	default:
		return "unknown"
	}
}

// Check 求解约束树
// refute=true时断言否定、找反例: unsat即证明成立
// refute=false时直接断言、找满足模型
func Check(solver *smt.Solver, c *Constr, refute bool) (Verdict, *smt.Model, error) {
	formula := c.Flatten()
	if refute {
		formula = formula.Not()
	}
	if err := solver.Assert(formula); err != nil {
		return VerdictUnknown, nil, errors.Wrap(err, "assert")
	}
	status, model, err := solver.Check()
	if err != nil {
		return VerdictUnknown, nil, errors.Wrap(err, "check")
	}
	switch status {
	case smt.StatusUnsat:
		if refute {
			return VerdictProved, nil, nil
		}
		return VerdictRefuted, nil, nil
	case smt.StatusSat:
		if refute {
			return VerdictRefuted, model, nil
		}
		return VerdictProved, model, nil
	}
	// 求解器超时或不完备，不能当作proved
	return VerdictUnknown, nil, nil
}

// Exclude 排除上一个模型中vars的取值后重新求解，用来枚举不同反例
// 会改写求解器状态，调用方自己负责Push/Pop
func Exclude(solver *smt.Solver, model *smt.Model, vars map[string]*smt.BitVec) (Verdict, *smt.Model, error) {
	if len(vars) == 0 {
		return VerdictUnknown, nil, errors.New("exclude: no variables")
	}
	var diffs []*smt.Bool
	for _, bv := range vars {
		val, err := model.BvValue(bv)
		if err != nil {
			continue
		}
		diffs = append(diffs, bv.Ne(smt.NewBitVecVal(val, bv.Size())))
	}
	if len(diffs) == 0 {
		return VerdictUnknown, nil, errors.New("exclude: no model values")
	}
	if err := solver.Assert(smt.Ors(diffs...)); err != nil {
		return VerdictUnknown, nil, errors.Wrap(err, "assert blocking clause")
	}
	status, next, err := solver.Check()
	if err != nil {
		return VerdictUnknown, nil, err
	}
	switch status {
	case smt.StatusSat:
		return VerdictRefuted, next, nil
	case smt.StatusUnsat:
		return VerdictProved, nil, nil
	}
	return VerdictUnknown, nil, nil
}

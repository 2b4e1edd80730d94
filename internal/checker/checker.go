package checker

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wpcheck/internal/ir"
	"wpcheck/internal/report"
	"wpcheck/internal/smt"
	"wpcheck/internal/util"
	"wpcheck/internal/wp"
)

// Checker 驱动单binary验证和双binary比较
// 环境装配、求解、反例枚举都在这里，WP核心保持纯粹

type Checker struct {
	opts *Options
}

func New(opts *Options, compare bool) (*Checker, error) {
	if err := opts.Validate(compare); err != nil {
		return nil, err
	}
	return &Checker{opts: opts}, nil
}

// VerifySub 单binary: 证明postcondition在func上成立
func (c *Checker) VerifySub(program *ir.Program) (*report.Result, error) {
	sub, err := program.Sub(c.opts.Func)
	if err != nil {
		return nil, err
	}
	env, err := c.newEnv(program, "")
	if err != nil {
		return nil, err
	}

	post, err := c.parseFormula(env, c.opts.Postcond)
	if err != nil {
		return nil, errors.Wrap(err, "postcondition")
	}
	precond, err := c.parseFormula(env, c.opts.Precond)
	if err != nil {
		return nil, errors.Wrap(err, "precondition")
	}

	startTime := time.Now()
	pre, err := wp.VisitSub(env, sub, wp.NewGoal("postcondition", post))
	if err != nil {
		return nil, errors.Wrap(err, "visit sub")
	}
	log.Infof("wp for %s computed in %s", sub.Name, time.Since(startTime))

	final := wp.NewClause(
		[]*wp.Constr{
			wp.NewGoal("register init", env.InitHyps()),
			wp.NewGoal("precondition", precond),
		},
		[]*wp.Constr{pre},
	)

	result := c.newResult(sub, nil, final, env.Weakenings())
	return result, c.solve(final, result, env.Bindings())
}

// CompareSubs 双binary: hypotheses => 串联后的关系前置条件
func (c *Checker) CompareSubs(origProg, modProg *ir.Program) (*report.Result, error) {
	origSub, err := origProg.Sub(c.opts.Func)
	if err != nil {
		return nil, errors.Wrap(err, "original")
	}
	modSub, err := modProg.Sub(c.opts.Func)
	if err != nil {
		return nil, errors.Wrap(err, "modified")
	}

	// 代码哈希相同且没有字面公式时直接判等，不必跑求解器
	origHash, modHash := util.CodeHash(origSub), util.CodeHash(modSub)
	if origHash == modHash && c.opts.Postcond == "" && c.opts.Precond == "" {
		log.Infof("sub %s unchanged (code hash %s), skipping solver", origSub.Name, origHash[:16])
		return &report.Result{
			Verdict:    wp.VerdictProved.String(),
			Sub:        origSub.Name,
			CompareSub: modSub.Name,
			CodeHash:   origHash,
		}, nil
	}

	origEnv, err := c.newEnv(origProg, "orig")
	if err != nil {
		return nil, err
	}
	modEnv, err := c.newEnv(modProg, "mod")
	if err != nil {
		return nil, err
	}
	modEnv.MemOffset = c.opts.MemOffset

	comps := c.comparators()
	orig := &wp.SubPair{Sub: origSub, Env: origEnv}
	mod := &wp.SubPair{Sub: modSub, Env: modEnv}

	startTime := time.Now()
	final, err := wp.CompareSubs(comps, orig, mod)
	if err != nil {
		return nil, errors.Wrap(err, "compare subs")
	}
	log.Infof("relational wp computed in %s", time.Since(startTime))

	weakenings := append(origEnv.Weakenings(), modEnv.Weakenings()...)
	result := c.newResult(origSub, modSub, final, weakenings)
	result.CodeHash = origHash

	bindings := origEnv.Bindings()
	for name, bv := range modEnv.Bindings() {
		bindings["mod:"+name] = bv
	}
	return result, c.solve(final, result, bindings)
}

func (c *Checker) newEnv(program *ir.Program, ns string) (*wp.Env, error) {
	env := wp.NewEnv(program, ns)
	if c.opts.NumUnroll > 0 {
		env.NumUnroll = c.opts.NumUnroll
	}
	if c.opts.StackSize != 0 {
		env.Stack = wp.Region{Base: c.opts.StackBase, Size: c.opts.StackSize}
	}
	if c.opts.HeapSize != 0 {
		env.Heap = wp.Region{Base: c.opts.HeapBase, Size: c.opts.HeapSize}
	}
	env.UseFunInputRegs = c.opts.UseFunInputRegs
	if c.opts.CheckNullDeref {
		env.AddExpCond(wp.CondNullDeref())
	}
	if c.opts.CheckOutOfBounds {
		env.AddExpCond(wp.CondOutOfBounds())
	}
	if c.opts.Inline != "" {
		spec, err := wp.SpecInline(c.opts.Inline)
		if err != nil {
			return nil, errors.Wrap(err, "bad --inline pattern")
		}
		env.AddFunSpec(spec)
	}
	env.BindRegisters()
	return env, nil
}

// parseFormula 字面公式在求解器的文本语法里引用寄存器名和init_前缀的入口值
// 解析前先把init符号都声明出来，名字才能解析到
func (c *Checker) parseFormula(env *wp.Env, src string) (*smt.Bool, error) {
	for _, reg := range env.Arch.Regs {
		env.InitReg(reg)
	}
	if src == "" {
		return smt.NewBoolVal(true), nil
	}
	return smt.ParseBool(src)
}

func (c *Checker) comparators() []*wp.Comparator {
	var comps []*wp.Comparator
	if len(c.opts.ComparePostRegs) > 0 {
		comps = append(comps, wp.CompareSubsEq(c.opts.ComparePreRegs, c.opts.ComparePostRegs))
	}
	if c.opts.Precond != "" || c.opts.Postcond != "" {
		comps = append(comps, wp.CompareSmtlib(c.opts.Precond, c.opts.Postcond))
	}
	if c.opts.CompareFuncCalls {
		comps = append(comps, wp.CompareFuncCalls())
	}
	if len(c.opts.PointerRegs) > 0 {
		comps = append(comps, wp.ComparePointerHyps(c.opts.PointerRegs))
	}
	if c.opts.CompareSPBounds {
		comps = append(comps, wp.CompareSPBounds())
	}
	if c.opts.CompareMemEq {
		comps = append(comps, wp.CompareMemEq())
	}
	if len(comps) == 0 {
		comps = append(comps, wp.CompareSubsEmptyPost())
	}
	return comps
}

func (c *Checker) newResult(sub, compareSub *ir.Sub, final *wp.Constr, weakenings []string) *report.Result {
	goals, depth := final.Stats()
	result := &report.Result{
		Sub:        sub.Name,
		Goals:      goals,
		Depth:      depth,
		Weakenings: weakenings,
	}
	if compareSub != nil {
		result.CompareSub = compareSub.Name
	}
	return result
}

// solve 求反例；refuted时按--models继续排除已见取值枚举更多反例
// Exclude会污染求解器状态，枚举整体裹在Push/Pop里
func (c *Checker) solve(final *wp.Constr, result *report.Result, bindings map[string]*smt.BitVec) error {
	solver := smt.NewSolver()
	defer solver.Close()

	verdict, model, err := wp.Check(solver, final, true)
	if err != nil {
		return errors.Wrap(err, "check")
	}
	result.Verdict = verdict.String()
	if verdict != wp.VerdictRefuted || model == nil {
		return nil
	}
	result.AddModel(model.Values(bindings))

	if c.opts.Models <= 1 {
		return nil
	}
	if err := solver.Push(); err != nil {
		return err
	}
	defer func() {
		if err := solver.Pop(); err != nil {
			log.Errorf("solver pop: %v", err)
		}
	}()
	for i := 1; i < c.opts.Models; i++ {
		next, nextModel, err := wp.Exclude(solver, model, bindings)
		if err != nil {
			log.Warnf("exclude: %v", err)
			break
		}
		if next != wp.VerdictRefuted || nextModel == nil {
			break
		}
		result.AddModel(nextModel.Values(bindings))
		model = nextModel
	}
	return nil
}

package wp

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wpcheck/internal/ir"
	"wpcheck/internal/smt"
)

// 回溯遍历CFG计算最弱前置条件
// 三层: visit_elt(单条语句) -> visit_block(块) -> visit_sub(子程序)

// visitState 一次遍历的路径状态
// active记录当前递归路径上每个块的活跃次数，用于回边计数
type visitState struct {
	active map[string]int
}

func newVisitState() *visitState {
	return &visitState{active: make(map[string]int)}
}

// VisitSub 从出口回溯到入口，计算整个子程序的前置条件
// 块缓存以本次调用为作用域；同一棵后置条件下重复到达的块直接复用
func VisitSub(env *Env, sub *ir.Sub, post *Constr) (*Constr, error) {
	if len(sub.Blocks) == 0 {
		return nil, errors.Errorf("sub %s: empty CFG", sub.Name)
	}
	if _, err := sub.Block(sub.Entry); err != nil {
		return nil, errors.Wrapf(err, "sub %s: missing entry", sub.Name)
	}
	if env.visitSub == nil {
		env.visitSub = VisitSub
	}
	env.resetCache()
	log.Debugf("visit sub %s: %d blocks, unroll bound %d", sub.Name, len(sub.Blocks), env.NumUnroll)
	pre, err := visitBlockID(env, sub, sub.Entry, post, newVisitState(), "")
	if err != nil {
		return nil, errors.Wrapf(err, "sub %s", sub.Name)
	}
	return pre, nil
}

func visitBlockID(env *Env, sub *ir.Sub, id string, post *Constr, st *visitState, fromPred string) (*Constr, error) {
	b, err := sub.Block(id)
	if err != nil {
		return nil, err
	}
	depth := st.active[id]
	if depth >= env.NumUnroll {
		// 超过展开上限的迭代假定不会发生——有意的soundness弱化
		env.RecordWeakening("loop unroll bound %d reached at block %s", env.NumUnroll, id)
		return Trivial(), nil
	}
	key := cacheKey(b, depth, fromPred)
	if c, ok := env.cacheGet(key); ok {
		return c, nil
	}
	st.active[id]++
	c, err := visitBlock(env, sub, b, post, st, fromPred)
	st.active[id]--
	if err != nil {
		return nil, err
	}
	env.cachePut(key, c)
	return c, nil
}

// cacheKey 无循环无phi时就是块ID；
// 循环展开的每一层、phi块的每条进入边前置条件都不同，必须分开缓存
func cacheKey(b *ir.Block, depth int, fromPred string) string {
	key := b.ID
	if depth > 0 {
		key = fmt.Sprintf("%s#%d", key, depth)
	}
	if fromPred != "" && b.HasPhi() {
		key = key + "@" + fromPred
	}
	return key
}

// visitBlock 从右向左折叠块内语句
func visitBlock(env *Env, sub *ir.Sub, b *ir.Block, post *Constr, st *visitState, fromPred string) (*Constr, error) {
	cur, err := blockInitial(env, sub, b, post, st)
	if err != nil {
		return nil, err
	}
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		cur, err = visitElt(env, sub, b, b.Stmts[i], cur, post, st, fromPred)
		if err != nil {
			return nil, errors.Wrapf(err, "block %s stmt %s", b.ID, b.Stmts[i].TID())
		}
	}
	return cur, nil
}

// blockInitial 折叠开始前的尾部后置条件
// 有跳转语句时由跳转决定；纯fallthrough块取唯一后继的前置条件
func blockInitial(env *Env, sub *ir.Sub, b *ir.Block, post *Constr, st *visitState) (*Constr, error) {
	jmps := b.Jmps()
	if len(jmps) == 0 {
		switch len(b.Succs) {
		case 0:
			return post, nil
		case 1:
			return visitBlockID(env, sub, b.Succs[0], post, st, b.ID)
		}
		return nil, errors.Errorf("block %s: %d successors but no jumps", b.ID, len(b.Succs))
	}
	// 条件跳转都不命中时的fallthrough落点
	if succ := fallthroughSucc(b, jmps); succ != "" {
		return visitBlockID(env, sub, succ, post, st, b.ID)
	}
	return post, nil
}

func fallthroughSucc(b *ir.Block, jmps []*ir.Jmp) string {
	for _, succ := range b.Succs {
		named := false
		for _, j := range jmps {
			if j.Target.Direct == succ || j.Target.Return == succ {
				named = true
				break
			}
		}
		if !named {
			return succ
		}
	}
	return ""
}

// visitElt 单条语句
// 赋值做替换，跳转走策略，phi按当前探索的进入边取值（已知不完备）
func visitElt(env *Env, sub *ir.Sub, b *ir.Block, stmt ir.Stmt, cur, post *Constr, st *visitState, fromPred string) (*Constr, error) {
	switch s := stmt.(type) {
	case *ir.Def:
		return visitDef(env, s.Lhs, s.Rhs, s.TID(), cur)
	case *ir.Phi:
		rhs, ok := s.Values[fromPred]
		if !ok {
			// 没有对应进入边的取值，放一个新鲜符号并记弱化
			env.RecordWeakening("phi %s has no value for edge %s -> %s", s.TID(), fromPred, b.ID)
			rhs = &ir.Unknown{Hint: "phi_" + s.Lhs.Name, Width: s.Lhs.Width}
		}
		return visitDef(env, s.Lhs, rhs, s.TID(), cur)
	case *ir.Jmp:
		return visitJmp(env, sub, b, s, cur, post, st)
	}
	return nil, errors.Errorf("unsupported statement %T", stmt)
}

// visitDef wp(x := e, Q) = Q[x -> e]，外加翻译产生的hooks
func visitDef(env *Env, lhs ir.Var, rhs ir.Exp, point string, cur *Constr) (*Constr, error) {
	rhsTerm, hooks, err := ExpToTermAt(env, rhs, point)
	if err != nil {
		return nil, err
	}
	old, err := env.Lookup(lhs.Name)
	if err != nil {
		return nil, err
	}
	var newTerm smt.Term
	if lhs.IsMem || lhs.Name == MemVar {
		arr, ok := rhsTerm.(*smt.Array)
		if !ok {
			return nil, errors.Errorf("def %s: memory variable assigned non-memory term", point)
		}
		newTerm = arr
	} else {
		bv, err := termAsBitVecWidth(rhsTerm, lhs.Width)
		if err != nil {
			return nil, errors.Wrapf(err, "def %s", point)
		}
		if bv.Size() != lhs.Width {
			return nil, errors.Errorf("def %s: width mismatch, lhs %d rhs %d", point, lhs.Width, bv.Size())
		}
		newTerm = bv
	}
	next, err := cur.Subst([]smt.Term{old}, []smt.Term{newTerm})
	if err != nil {
		return nil, err
	}
	return applyHooks(hooks, next), nil
}

// termAsBitVecWidth 布尔coerce成目标宽度，位向量保持原宽
func termAsBitVecWidth(t smt.Term, width uint32) (*smt.BitVec, error) {
	if b, ok := t.(*smt.Bool); ok {
		return b.AsBitVec(width), nil
	}
	return termAsBitVec(t)
}

// applyHooks assume项做假设，verify项做新目标
func applyHooks(hooks *Hooks, cur *Constr) *Constr {
	if hooks == nil || hooks.Empty() {
		return cur
	}
	goals := make([]*Constr, 0, len(hooks.Verifies)+1)
	for _, g := range hooks.Verifies {
		goals = append(goals, NewGoalAt(g.Name, g.Cond, g.Point))
	}
	goals = append(goals, cur)
	var hyps []*Constr
	for _, a := range hooks.Assumes {
		hyps = append(hyps, NewGoal("assume", a))
	}
	return NewClause(hyps, goals)
}

func visitJmp(env *Env, sub *ir.Sub, b *ir.Block, j *ir.Jmp, cur, post *Constr, st *visitState) (*Constr, error) {
	// 自定义跳转策略优先，None则落回默认保守处理
	if res, ok, err := env.jmpSpec(env, cur, b.ID, j); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	var (
		taken *Constr
		err   error
	)
	switch j.Kind {
	case ir.JmpRet:
		taken = post

	case ir.JmpGoto:
		if j.IsIndirect() {
			// 间接跳转不解析，后置条件原样返回——documented unsoundness
			env.RecordWeakening("indirect jump %s left unresolved", j.TID())
			return cur, nil
		}
		taken, err = visitBlockID(env, sub, j.Target.Direct, post, st, b.ID)
		if err != nil {
			return nil, err
		}

	case ir.JmpCall:
		if j.Target.Sym == "" {
			env.RecordWeakening("indirect call %s left unresolved", j.TID())
			return cur, nil
		}
		taken, err = visitCall(env, sub, b, j, post, st)
		if err != nil {
			return nil, err
		}

	case ir.JmpInt:
		// 中断和call一样有返回落点，落点的前置条件交给策略
		intPost := cur
		if j.Target.Return != "" {
			intPost, err = visitBlockID(env, sub, j.Target.Return, post, st, b.ID)
			if err != nil {
				return nil, err
			}
		}
		taken, err = env.intSpec(env, intPost, j.Interrupt)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("jmp %s: unknown kind %q", j.TID(), j.Kind)
	}

	if j.Cond == nil {
		return taken, nil
	}
	condTerm, hooks, err := ExpToTermAt(env, j.Cond, j.TID())
	if err != nil {
		return nil, err
	}
	cond, err := termAsBool(condTerm)
	if err != nil {
		return nil, errors.Wrapf(err, "jmp %s condition", j.TID())
	}
	return applyHooks(hooks, condConstr(cond, taken, cur)), nil
}

// condConstr (cond => taken) ∧ (¬cond => fallthrough)
func condConstr(cond *smt.Bool, taken, fall *Constr) *Constr {
	return NewClause(nil, []*Constr{
		NewClause([]*Constr{NewGoal("branch taken", cond)}, []*Constr{taken}),
		NewClause([]*Constr{NewGoal("branch not taken", cond.Not())}, []*Constr{fall}),
	})
}

func visitCall(env *Env, sub *ir.Sub, b *ir.Block, j *ir.Jmp, post *Constr, st *visitState) (*Constr, error) {
	callee := j.Target.Sym
	env.RecordCall(callee)

	// call返回后的落点决定它看到的后置条件
	retPost := Trivial()
	if j.Target.Return != "" {
		var err error
		retPost, err = visitBlockID(env, sub, j.Target.Return, post, st, b.ID)
		if err != nil {
			return nil, err
		}
	}

	calleeSub, _ := env.Program.Sub(callee)
	spec := env.resolveFunSpec(callee, calleeSub)
	call := &CallSite{Block: b.ID, Jmp: j, Callee: callee}

	if spec.Inline {
		if calleeSub == nil {
			return nil, errors.Errorf("call %s: cannot inline external %q", j.TID(), callee)
		}
		// inline用子作用域: 共享绑定和策略，块缓存独立
		child := env.childScope()
		pre, err := env.visitSub(child, calleeSub, retPost)
		if err != nil {
			return nil, errors.Wrapf(err, "inline %s", callee)
		}
		env.TransCount = child.TransCount
		env.weakenings = child.weakenings
		return pre, nil
	}

	log.Debugf("call %s at %s: summary %s", callee, j.TID(), spec.Name)
	pre, err := spec.Summary(env, retPost, call)
	if err != nil {
		return nil, errors.Wrapf(err, "summary %s for %s", spec.Name, callee)
	}
	return pre, nil
}

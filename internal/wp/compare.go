package wp

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wpcheck/internal/ir"
	"wpcheck/internal/smt"
)

// 比较层: 两次WP计算串联成一个关系验证条件
// hypotheses => wp_orig(wp_mod(relational post))

// SubPair 一个程序的(子程序, 环境)对
type SubPair struct {
	Sub *ir.Sub
	Env *Env
}

// Comparator 关系谓词对: 后置条件构造器 + 假设构造器
// 只读两侧的(sub, env)，不得改动对方环境，折叠顺序不影响结果
type Comparator struct {
	Name string
	// Post 关系后置条件，nil表示不贡献
	Post func(orig, mod *SubPair) (*smt.Bool, error)
	// Hyp 关系假设，nil表示不贡献
	Hyp func(orig, mod *SubPair) (*smt.Bool, error)
	// PostCheck 两次遍历完成后的附加目标，nil表示没有
	PostCheck func(orig, mod *SubPair) (*Constr, error)
}

// CompareSubs 折叠comparators，两次visit_sub串联成最终约束树
// 先回溯modified侧，得到的前置条件作为original侧的后置条件再回溯一次，
// 两侧的替换都落在同一棵树上，后置条件才真正关联两个出口
func CompareSubs(comps []*Comparator, orig, mod *SubPair) (*Constr, error) {
	if len(comps) == 0 {
		return nil, errors.New("no comparators given")
	}
	var posts, hyps []*smt.Bool
	for _, comp := range comps {
		if comp.Post != nil {
			p, err := comp.Post(orig, mod)
			if err != nil {
				return nil, errors.Wrapf(err, "comparator %s post", comp.Name)
			}
			if p != nil {
				posts = append(posts, p)
			}
		}
	}
	post := NewGoal("relational postcondition", smt.Ands(posts...))

	for _, comp := range comps {
		if comp.Hyp != nil {
			h, err := comp.Hyp(orig, mod)
			if err != nil {
				return nil, errors.Wrapf(err, "comparator %s hyp", comp.Name)
			}
			if h != nil {
				hyps = append(hyps, h)
			}
		}
	}

	log.Infof("comparing %s against %s", orig.Sub.Name, mod.Sub.Name)
	pre, err := VisitSub(mod.Env, mod.Sub, post)
	if err != nil {
		return nil, errors.Wrap(err, "modified")
	}
	pre, err = VisitSub(orig.Env, orig.Sub, pre)
	if err != nil {
		return nil, errors.Wrap(err, "original")
	}

	goals := []*Constr{pre}
	for _, comp := range comps {
		if comp.PostCheck != nil {
			check, err := comp.PostCheck(orig, mod)
			if err != nil {
				return nil, errors.Wrapf(err, "comparator %s check", comp.Name)
			}
			if check != nil {
				goals = append(goals, check)
			}
		}
	}

	return NewClause(
		[]*Constr{NewGoal("relational hypotheses", smt.Ands(hyps...))},
		goals,
	), nil
}

// CompareSubsEq 给定输入寄存器相等的假设下，输出寄存器相等
func CompareSubsEq(preRegs, postRegs []string) *Comparator {
	return &Comparator{
		Name: "reg-equality",
		Post: func(orig, mod *SubPair) (*smt.Bool, error) {
			return regsEq(orig.Env, mod.Env, postRegs)
		},
		Hyp: func(orig, mod *SubPair) (*smt.Bool, error) {
			return regsEq(orig.Env, mod.Env, preRegs)
		},
	}
}

// CompareSubsEmptyPost 空后置条件，两边可证即通过
func CompareSubsEmptyPost() *Comparator {
	return &Comparator{
		Name: "empty-post",
		Post: func(orig, mod *SubPair) (*smt.Bool, error) {
			return smt.NewBoolVal(true), nil
		},
	}
}

// CompareFuncCalls 调用符号集合保持不变
// 两次遍历各自记录遇到的调用符号，事后比较
func CompareFuncCalls() *Comparator {
	return &Comparator{
		Name: "func-calls",
		PostCheck: func(orig, mod *SubPair) (*Constr, error) {
			if sameSymSet(orig.Env.CalledSyms(), mod.Env.CalledSyms()) {
				return NewGoal("call symbols preserved", smt.NewBoolVal(true)), nil
			}
			log.Warnf("call symbol sets differ: %v vs %v",
				orig.Env.CalledSyms(), mod.Env.CalledSyms())
			return NewGoal("call symbols preserved", smt.NewBoolVal(false)), nil
		},
	}
}

// CompareSmtlib 字面公式，求解器文本语法
// 公式里引用两侧符号必须带各自namespace前缀
func CompareSmtlib(preSrc, postSrc string) *Comparator {
	return &Comparator{
		Name: "smtlib",
		Post: func(orig, mod *SubPair) (*smt.Bool, error) {
			if postSrc == "" {
				return nil, nil
			}
			return smt.ParseBool(postSrc)
		},
		Hyp: func(orig, mod *SubPair) (*smt.Bool, error) {
			if preSrc == "" {
				return nil, nil
			}
			return smt.ParseBool(preSrc)
		},
	}
}

// ComparePointerHyps 指针寄存器的别名假设:
// 两侧相等、非空、不落在栈区间内
func ComparePointerHyps(ptrRegs []string) *Comparator {
	return &Comparator{
		Name: "pointer-hyps",
		Hyp: func(orig, mod *SubPair) (*smt.Bool, error) {
			var hyps []*smt.Bool
			for _, reg := range ptrRegs {
				o, err := orig.Env.LookupBitVec(reg)
				if err != nil {
					return nil, err
				}
				m, err := mod.Env.LookupBitVec(reg)
				if err != nil {
					return nil, err
				}
				zero := smt.NewBitVecValInt64(0, o.Size())
				hyps = append(hyps,
					o.Eq(m),
					o.Ne(zero),
					orig.Env.Stack.Contains(o).Not(),
				)
			}
			return smt.Ands(hyps...), nil
		},
	}
}

// CompareSPBounds 两侧栈指针都在栈区间内
func CompareSPBounds() *Comparator {
	return &Comparator{
		Name: "sp-bounds",
		Hyp: func(orig, mod *SubPair) (*smt.Bool, error) {
			var hyps []*smt.Bool
			for _, pair := range []*SubPair{orig, mod} {
				sp := pair.Env.Arch.SP
				if sp == "" {
					continue
				}
				bv, err := pair.Env.LookupBitVec(sp)
				if err != nil {
					return nil, err
				}
				hyps = append(hyps, pair.Env.Stack.Contains(bv))
			}
			return smt.Ands(hyps...), nil
		},
	}
}

// CompareMemEq 入口内存逐byte相等
func CompareMemEq() *Comparator {
	return &Comparator{
		Name: "mem-equality",
		Hyp: func(orig, mod *SubPair) (*smt.Bool, error) {
			o, err := orig.Env.LookupMem()
			if err != nil {
				return nil, err
			}
			m, err := mod.Env.LookupMem()
			if err != nil {
				return nil, err
			}
			return o.Eq(m), nil
		},
	}
}

func regsEq(origEnv, modEnv *Env, regs []string) (*smt.Bool, error) {
	var eqs []*smt.Bool
	for _, reg := range regs {
		o, err := origEnv.LookupBitVec(reg)
		if err != nil {
			return nil, err
		}
		m, err := modEnv.LookupBitVec(reg)
		if err != nil {
			return nil, err
		}
		eqs = append(eqs, o.Eq(m))
	}
	return smt.Ands(eqs...), nil
}

func sameSymSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

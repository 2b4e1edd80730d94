package wp

import (
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"wpcheck/internal/ir"
	"wpcheck/internal/smt"
)

// 调用、跳转、中断的处理策略
// 策略是函数值配置，不是继承层次；按注册顺序第一个匹配生效

// CallSite 一次调用点
type CallSite struct {
	Block  string
	Jmp    *ir.Jmp
	Callee string
}

// SummaryFn 把调用效果抽象成当前环境和后置条件的函数，不进入被调方body
type SummaryFn func(env *Env, post *Constr, call *CallSite) (*Constr, error)

// FunSpec 调用策略: Inline展开被调方，否则用Summary
type FunSpec struct {
	Name    string
	Match   func(env *Env, callee string, sub *ir.Sub) bool
	Inline  bool
	Summary SummaryFn
}

// SpecVerifierError __VERIFIER_error/abort类函数: 到达即失败
// 调用点的前置条件恒假
func SpecVerifierError() *FunSpec {
	return &FunSpec{
		Name: "verifier-error",
		Match: func(env *Env, callee string, sub *ir.Sub) bool {
			return callee == "__VERIFIER_error" || callee == "abort" || callee == "__assert_fail"
		},
		Summary: func(env *Env, post *Constr, call *CallSite) (*Constr, error) {
			return NewGoalAt("call to "+call.Callee, smt.NewBoolVal(false), call.Jmp.TID()), nil
		},
	}
}

// SpecVerifierAssume assume类函数对前置条件无影响（identity）
func SpecVerifierAssume() *FunSpec {
	return &FunSpec{
		Name: "verifier-assume",
		Match: func(env *Env, callee string, sub *ir.Sub) bool {
			return callee == "__VERIFIER_assume"
		},
		Summary: func(env *Env, post *Constr, call *CallSite) (*Constr, error) {
			return post, nil
		},
	}
}

// SpecVerifierNondet nondet函数: 返回值寄存器换成新鲜符号
func SpecVerifierNondet() *FunSpec {
	return &FunSpec{
		Name: "verifier-nondet",
		Match: func(env *Env, callee string, sub *ir.Sub) bool {
			return strings.HasPrefix(callee, "__VERIFIER_nondet")
		},
		Summary: func(env *Env, post *Constr, call *CallSite) (*Constr, error) {
			ret := env.Arch.RetReg
			if ret == "" {
				return post, nil
			}
			old, err := env.LookupBitVec(ret)
			if err != nil {
				return nil, err
			}
			fresh := env.FreshBitVec("nondet_"+call.Callee, env.Arch.WordSize)
			return post.Subst([]smt.Term{old}, []smt.Term{fresh})
		},
	}
}

// SpecDefault chaos summary，默认兜底策略
// 被调方可能改写的每个寄存器换成callee_reg(inputs...)未解释函数项
func SpecDefault() *FunSpec {
	return &FunSpec{
		Name: "chaos",
		Match: func(env *Env, callee string, sub *ir.Sub) bool {
			return true
		},
		Summary: func(env *Env, post *Constr, call *CallSite) (*Constr, error) {
			inputs, domain, err := chaosInputs(env)
			if err != nil {
				return nil, err
			}
			clobbered := env.Arch.CallerSaved
			if len(clobbered) == 0 {
				clobbered = env.Arch.Regs
			}
			var vars, vals []smt.Term
			for _, reg := range clobbered {
				old, err := env.LookupBitVec(reg)
				if err != nil {
					return nil, err
				}
				f := env.CallFunction(call.Callee, reg, domain)
				vars = append(vars, old)
				vals = append(vals, f.Call(inputs...))
			}
			return post.Subst(vars, vals)
		},
	}
}

// SpecInline 按名字正则inline展开被调方CFG
// 展开要回调visit_sub，依赖Env里注入的indirection
func SpecInline(pattern string) (*FunSpec, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &FunSpec{
		Name:   "inline",
		Inline: true,
		Match: func(env *Env, callee string, sub *ir.Sub) bool {
			return sub != nil && re.MatchString(callee)
		},
	}, nil
}

// chaosInputs summary项的输入寄存器
func chaosInputs(env *Env) ([]*smt.BitVec, []uint32, error) {
	regs := env.Arch.Regs
	if env.UseFunInputRegs && len(env.Arch.ArgRegs) > 0 {
		regs = env.Arch.ArgRegs
	}
	inputs := make([]*smt.BitVec, 0, len(regs))
	domain := make([]uint32, 0, len(regs))
	for _, reg := range regs {
		bv, err := env.LookupBitVec(reg)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, bv)
		domain = append(domain, env.Arch.WordSize)
	}
	return inputs, domain, nil
}

// JmpSpec 跳转策略
// 返回(nil, false)表示交给默认保守处理:
// 间接跳转不解析，后置条件原样返回——已知的unsound之处，随结果上报
type JmpSpec func(env *Env, post *Constr, blockID string, j *ir.Jmp) (*Constr, bool, error)

func JmpSpecDefault() JmpSpec {
	return func(env *Env, post *Constr, blockID string, j *ir.Jmp) (*Constr, bool, error) {
		return nil, false, nil
	}
}

// JmpSpecReachability 按外部提供的taken map收紧跳转条件
// 复现特定bug路径的定向查询用
func JmpSpecReachability(taken map[string]bool) JmpSpec {
	return func(env *Env, post *Constr, blockID string, j *ir.Jmp) (*Constr, bool, error) {
		wasTaken, ok := taken[j.TID()]
		if !ok || j.Cond == nil {
			return nil, false, nil
		}
		condTerm, _, err := ExpToTerm(env, j.Cond)
		if err != nil {
			return nil, false, err
		}
		cond, err := termAsBool(condTerm)
		if err != nil {
			return nil, false, err
		}
		if !wasTaken {
			cond = cond.Not()
		}
		log.Debugf("reachability: pinning edge %s taken=%v", j.TID(), wasTaken)
		return NewClause(nil, []*Constr{
			NewGoalAt("edge pinned", cond, j.TID()),
			post,
		}), true, nil
	}
}

// IntSpec 中断策略，默认当no-op
type IntSpec func(env *Env, post *Constr, intNo int) (*Constr, error)

func IntSpecDefault() IntSpec {
	return func(env *Env, post *Constr, intNo int) (*Constr, error) {
		return post, nil
	}
}

// CondHook 单个side-condition generator的产物
type CondHook struct {
	// Verify 新证明义务
	Verify *Goal
	// Assume 视为已成立的事实
	Assume *smt.Bool
}

// ExpCond 表达式side-condition generator
// 每个翻译的表达式都会询问整个列表；generator之间相互独立、顺序无关
type ExpCond func(env *Env, e ir.Exp, args []smt.Term) *CondHook

// CondNonZeroDivisor 除数非零的证明义务
func CondNonZeroDivisor() ExpCond {
	return func(env *Env, e ir.Exp, args []smt.Term) *CondHook {
		binop, ok := e.(*ir.BinOp)
		if !ok || len(args) != 2 {
			return nil
		}
		switch binop.Op {
		case ir.OpDiv, ir.OpSDiv, ir.OpMod, ir.OpSMod:
		default:
			return nil
		}
		divisor, ok := args[1].(*smt.BitVec)
		if !ok {
			return nil
		}
		zero := smt.NewBitVecValInt64(0, divisor.Size())
		return &CondHook{
			Verify: &Goal{Name: "nonzero divisor", Cond: divisor.Ne(zero)},
		}
	}
}

// CondNullDeref 访存地址非空
func CondNullDeref() ExpCond {
	return func(env *Env, e ir.Exp, args []smt.Term) *CondHook {
		addr := memAccessAddr(e, args)
		if addr == nil {
			return nil
		}
		zero := smt.NewBitVecValInt64(0, addr.Size())
		return &CondHook{
			Verify: &Goal{Name: "non-null address", Cond: addr.Ne(zero)},
		}
	}
}

// CondOutOfBounds 访存地址落在栈或堆区间内
func CondOutOfBounds() ExpCond {
	return func(env *Env, e ir.Exp, args []smt.Term) *CondHook {
		addr := memAccessAddr(e, args)
		if addr == nil {
			return nil
		}
		inBounds := env.Stack.Contains(addr).Or(env.Heap.Contains(addr))
		return &CondHook{
			Verify: &Goal{Name: "address in bounds", Cond: inBounds},
		}
	}
}

// memAccessAddr load/store的已翻译地址项，args布局见翻译层
func memAccessAddr(e ir.Exp, args []smt.Term) *smt.BitVec {
	switch e.(type) {
	case *ir.Load, *ir.Store:
	default:
		return nil
	}
	if len(args) < 2 {
		return nil
	}
	addr, ok := args[1].(*smt.BitVec)
	if !ok {
		return nil
	}
	return addr
}

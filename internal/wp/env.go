package wp

import (
	"fmt"

	"github.com/pkg/errors"

	"wpcheck/internal/ir"
	"wpcheck/internal/smt"
)

// MemVar 内存在IR里的变量名
const MemVar = "mem"

// DefaultNumUnroll 循环默认展开次数
const DefaultNumUnroll = 5

// Region 地址区间，指针合法性side condition用
type Region struct {
	Base uint64
	Size uint64
}

func (r Region) Contains(addr *smt.BitVec) *smt.Bool {
	width := addr.Size()
	base := smt.NewBitVecValInt64(int64(r.Base), width)
	limit := smt.NewBitVecValInt64(int64(r.Base+r.Size), width)
	return addr.Uge(base).And(addr.Ult(limit))
}

// namer 新鲜名字生成器
// 单个实例内名字不会重复，namespace前缀保证两个程序的符号不会碰撞
type namer struct {
	ns      string
	counter int
}

func (n *namer) fresh(base string) string {
	n.counter++
	if n.ns == "" {
		return fmt.Sprintf("%s!%d", base, n.counter)
	}
	return fmt.Sprintf("%s_%s!%d", n.ns, base, n.counter)
}

// named 变量的求解器侧名字，freshen开启时带namespace前缀
func (n *namer) named(base string) string {
	if n.ns == "" {
		return base
	}
	return n.ns + "_" + base
}

// Env 符号环境，单次WP遍历的全部可变状态
// 单一所有者，只能被一条调用链使用；比较模式下两个程序各持有一个
type Env struct {
	Arch    *ir.Arch
	Program *ir.Program

	namer    *namer
	bindings map[string]smt.Term
	inits    map[string]*smt.BitVec

	// 块前置条件缓存，key是块ID（循环展开时附加深度）
	// 一次遍历内只增不删，使菱形控制流只推导一次
	blockCache map[string]*Constr

	funSpecs    []*FunSpec
	defaultSpec *FunSpec
	jmpSpec     JmpSpec
	intSpec     IntSpec
	expConds    []ExpCond

	NumUnroll int
	Stack     Region
	Heap      Region

	// UseFunInputRegs chaos summary只用参数寄存器做输入
	UseFunInputRegs bool
	// MemOffset 两个binary基址不同时的地址平移
	MemOffset int64

	// 已声明的调用符号，callee(in_1..in_n)形式的summary项
	callFuncs  map[string]*smt.Function
	calledSyms map[string]bool

	// TransCount 表达式翻译次数，测试memoization用
	TransCount int

	weakenings []string

	// visitSub 构造后注入，循环展开和inline策略要能回调整个子程序的遍历
	visitSub func(env *Env, sub *ir.Sub, post *Constr) (*Constr, error)
}

// NewEnv 创建环境并装默认策略
// ns非空时所有符号带前缀（比较模式的freshening）
func NewEnv(program *ir.Program, ns string) *Env {
	env := &Env{
		Arch:       program.Arch,
		Program:    program,
		namer:      &namer{ns: ns},
		bindings:   make(map[string]smt.Term),
		inits:      make(map[string]*smt.BitVec),
		blockCache: make(map[string]*Constr),
		NumUnroll:  DefaultNumUnroll,
		// 默认的栈/堆区间，可被配置覆盖
		Stack:      Region{Base: 0x7ff0_0000, Size: 0x80_0000},
		Heap:       Region{Base: 0x1000_0000, Size: 0x1000_0000},
		callFuncs:  make(map[string]*smt.Function),
		calledSyms: make(map[string]bool),
	}
	env.funSpecs = []*FunSpec{
		SpecVerifierError(),
		SpecVerifierAssume(),
		SpecVerifierNondet(),
	}
	env.defaultSpec = SpecDefault()
	env.jmpSpec = JmpSpecDefault()
	env.intSpec = IntSpecDefault()
	env.expConds = []ExpCond{CondNonZeroDivisor()}
	return env
}

// BindRegisters 把架构寄存器和内存绑定成新鲜符号
// caller必须在遍历前绑定所有live-in变量
func (env *Env) BindRegisters() {
	for _, reg := range env.Arch.Regs {
		env.bindings[reg] = smt.NewBitVec(env.namer.named(reg), env.Arch.WordSize)
	}
	env.bindings[MemVar] = smt.NewMemArray(env.namer.named(MemVar), env.Arch.PtrSize)
}

// Bind 绑定单个变量
func (env *Env) Bind(v ir.Var, term smt.Term) {
	env.bindings[v.Name] = term
}

var ErrUnbound = errors.New("unbound variable")

func (env *Env) Lookup(name string) (smt.Term, error) {
	t, ok := env.bindings[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnbound, "%q", name)
	}
	return t, nil
}

func (env *Env) LookupBitVec(name string) (*smt.BitVec, error) {
	t, err := env.Lookup(name)
	if err != nil {
		return nil, err
	}
	bv, ok := t.(*smt.BitVec)
	if !ok {
		return nil, errors.Errorf("variable %q is not a bitvector", name)
	}
	return bv, nil
}

func (env *Env) LookupMem() (*smt.Array, error) {
	t, err := env.Lookup(MemVar)
	if err != nil {
		return nil, err
	}
	arr, ok := t.(*smt.Array)
	if !ok {
		return nil, errors.Errorf("%q is not memory-sorted", MemVar)
	}
	return arr, nil
}

// InitReg 寄存器入口值符号init_<reg>
// 不参与替换，后置条件里引用它表示入口时刻的值
func (env *Env) InitReg(reg string) *smt.BitVec {
	if bv, ok := env.inits[reg]; ok {
		return bv
	}
	bv := smt.NewBitVec(env.namer.named("init_"+reg), env.Arch.WordSize)
	env.inits[reg] = bv
	return bv
}

// InitHyps 所有寄存器的reg == init_reg假设
func (env *Env) InitHyps() *smt.Bool {
	var hyps []*smt.Bool
	for _, reg := range env.Arch.Regs {
		bv, err := env.LookupBitVec(reg)
		if err != nil {
			continue
		}
		hyps = append(hyps, bv.Eq(env.InitReg(reg)))
	}
	return smt.Ands(hyps...)
}

// FreshBitVec 分配新鲜位向量（nondet值、unknown表达式）
func (env *Env) FreshBitVec(base string, width uint32) *smt.BitVec {
	return smt.NewBitVec(env.namer.fresh(base), width)
}

// Bindings 当前绑定的位向量变量，反例取值用
func (env *Env) Bindings() map[string]*smt.BitVec {
	result := make(map[string]*smt.BitVec)
	for name, t := range env.bindings {
		if bv, ok := t.(*smt.BitVec); ok {
			result[name] = bv
		}
	}
	for reg, bv := range env.inits {
		result["init_"+reg] = bv
	}
	return result
}

func (env *Env) cacheGet(key string) (*Constr, bool) {
	c, ok := env.blockCache[key]
	return c, ok
}

func (env *Env) cachePut(key string, c *Constr) {
	// read-before-write，一次遍历内不失效
	if _, ok := env.blockCache[key]; ok {
		return
	}
	env.blockCache[key] = c
}

func (env *Env) resetCache() {
	env.blockCache = make(map[string]*Constr)
}

// childScope inline时的子作用域: 共享绑定、策略和名字生成器，
// 块缓存独立（不同的后置条件不能复用缓存）
func (env *Env) childScope() *Env {
	child := *env
	child.blockCache = make(map[string]*Constr)
	return &child
}

// AddFunSpec 插在默认策略之前，先注册的先匹配
func (env *Env) AddFunSpec(spec *FunSpec) {
	env.funSpecs = append(env.funSpecs, spec)
}

func (env *Env) SetDefaultFunSpec(spec *FunSpec) {
	env.defaultSpec = spec
}

func (env *Env) SetJmpSpec(spec JmpSpec) {
	env.jmpSpec = spec
}

func (env *Env) SetIntSpec(spec IntSpec) {
	env.intSpec = spec
}

func (env *Env) AddExpCond(cond ExpCond) {
	env.expConds = append(env.expConds, cond)
}

// resolveFunSpec 按序匹配，必有默认策略兜底
func (env *Env) resolveFunSpec(callee string, sub *ir.Sub) *FunSpec {
	for _, spec := range env.funSpecs {
		if spec.Match(env, callee, sub) {
			return spec
		}
	}
	return env.defaultSpec
}

// CallFunction callee每个输出寄存器一个未解释函数符号
func (env *Env) CallFunction(callee, reg string, domain []uint32) *smt.Function {
	key := env.namer.named(callee + "." + reg)
	if f, ok := env.callFuncs[key]; ok {
		return f
	}
	f := smt.NewFunction(key, domain, env.Arch.WordSize)
	env.callFuncs[key] = f
	return f
}

func (env *Env) RecordCall(sym string) {
	env.calledSyms[sym] = true
}

// CalledSyms 本次遍历遇到的调用符号集合
func (env *Env) CalledSyms() []string {
	result := make([]string, 0, len(env.calledSyms))
	for sym := range env.calledSyms {
		result = append(result, sym)
	}
	return result
}

// RecordWeakening 记录一次soundness弱化（间接跳转、展开超限、phi近似）
// 不是错误，但必须随结果上报
func (env *Env) RecordWeakening(format string, args ...interface{}) {
	env.weakenings = append(env.weakenings, fmt.Sprintf(format, args...))
}

func (env *Env) Weakenings() []string {
	return env.weakenings
}

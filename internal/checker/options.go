package checker

import (
	"math"

	"github.com/pkg/errors"
)

// Options 外部可配置项（recognized options）
// 校验失败属于configuration error，分析不会开始
type Options struct {
	// Func 必选，要分析的子程序名
	Func string

	// Precond/Postcond 求解器文本语法的字面公式
	Precond  string
	Postcond string

	NumUnroll int

	CheckNullDeref   bool
	CheckOutOfBounds bool

	// Inline 按名字正则inline被调方
	Inline string

	StackBase uint64
	StackSize uint64
	HeapBase  uint64
	HeapSize  uint64

	// UseFunInputRegs chaos summary只用参数寄存器
	UseFunInputRegs bool

	// Models 最多枚举几个反例
	Models int

	// 以下仅比较模式有效
	ComparePreRegs   []string
	ComparePostRegs  []string
	CompareFuncCalls bool
	PointerRegs      []string
	CompareSPBounds  bool
	CompareMemEq     bool
	// MemOffset modified侧的地址平移
	MemOffset int64
}

func (opts *Options) Validate(compare bool) error {
	if opts.Func == "" {
		return errors.New("missing required --func")
	}
	if opts.NumUnroll < 0 {
		return errors.Errorf("invalid --num-unroll %d", opts.NumUnroll)
	}
	if opts.Models < 1 {
		opts.Models = 1
	}
	if compare {
		if len(opts.ComparePostRegs) > 0 && opts.Postcond != "" {
			return errors.New("--compare-post-reg-values and --postcond are mutually exclusive")
		}
	} else {
		if len(opts.ComparePostRegs) > 0 || opts.CompareFuncCalls || opts.CompareMemEq {
			return errors.New("comparison flags require the compare command")
		}
	}
	if (opts.StackSize == 0) != (opts.StackBase == 0) {
		return errors.New("--stack-base and --stack-size must be given together")
	}
	if (opts.HeapSize == 0) != (opts.HeapBase == 0) {
		return errors.New("--heap-base and --heap-size must be given together")
	}
	// base+size回绕会把bounds谓词翻转
	if opts.StackSize != 0 && opts.StackBase > math.MaxUint64-opts.StackSize {
		return errors.New("--stack-base plus --stack-size overflows the address space")
	}
	if opts.HeapSize != 0 && opts.HeapBase > math.MaxUint64-opts.HeapSize {
		return errors.New("--heap-base plus --heap-size overflows the address space")
	}
	return nil
}

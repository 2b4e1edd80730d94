package report

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Result 一次验证的结论
// unknown是独立结论，绝不折叠成proved
type Result struct {
	Verdict string
	Sub     string
	// CompareSub 比较模式下modified侧的子程序名
	CompareSub string
	CodeHash   string

	// Goals/Depth 约束树统计
	Goals int
	Depth int

	// Models 反例，变量名 -> 具体值；只有refuted时非空
	// 枚举多个反例时按发现顺序排列
	Models []map[string]*big.Int

	// Weakenings 遍历中发生的soundness弱化，结论要带着它们一起读
	Weakenings []string
}

func (r *Result) AddModel(model map[string]*big.Int) {
	r.Models = append(r.Models, model)
}

func (r *Result) String() string {
	var sb strings.Builder
	header := fmt.Sprintf("Verdict: %s\nSubroutine: %s\n", r.Verdict, r.Sub)
	if r.CompareSub != "" {
		header += fmt.Sprintf("Compared against: %s\n", r.CompareSub)
	}
	sb.WriteString(Colour(colourFor(r.Verdict), header))

	sb.WriteString(fmt.Sprintf("Constraint tree: %d goals, depth %d\n", r.Goals, r.Depth))

	for i, model := range r.Models {
		sb.WriteString(Colour(33, fmt.Sprintf("Countermodel %d:\n", i+1)))
		names := make([]string, 0, len(model))
		for name := range model {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("  %s = 0x%s\n", name, model[name].Text(16)))
		}
	}
	if len(r.Weakenings) > 0 {
		sb.WriteString(Colour(33, "Result is weaker than exact:\n"))
		for _, w := range r.Weakenings {
			sb.WriteString("  - " + w + "\n")
		}
	}
	return sb.String()
}

func colourFor(verdict string) int {
	switch verdict {
	case "proved":
		return 32
	case "refuted":
		return 31
	}
	return 33
}

func Colour(color int, str string) string {
	return fmt.Sprintf("\033[%dm%s\033[0m", color, str)
}

package smt

import (
	"fmt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

// Term 所有可进入求解器的项
type Term interface {
	GetRaw() yices2.TermT
	GetName() string
	Type() string
}

// SubstBool 把t中的vars替换成vals
// WP对赋值语句的处理依赖这里: wp(x:=e, Q) = Q[x -> e]
func SubstBool(t *Bool, vars, vals []Term) (*Bool, error) {
	raw, err := subst(t.GetRaw(), vars, vals)
	if err != nil {
		return nil, err
	}
	return NewBoolFromTerm(raw), nil
}

func SubstBitVec(t *BitVec, vars, vals []Term) (*BitVec, error) {
	raw, err := subst(t.GetRaw(), vars, vals)
	if err != nil {
		return nil, err
	}
	return NewBitVecFromTerm(raw), nil
}

func subst(t yices2.TermT, vars, vals []Term) (yices2.TermT, error) {
	if len(vars) != len(vals) {
		return yices2.NullTerm, fmt.Errorf("subst: %d vars, %d vals", len(vars), len(vals))
	}
	if len(vars) == 0 {
		return t, nil
	}
	rawVars := make([]yices2.TermT, len(vars))
	rawVals := make([]yices2.TermT, len(vals))
	for i := range vars {
		rawVars[i] = vars[i].GetRaw()
		rawVals[i] = vals[i].GetRaw()
	}
	result := yices2.SubstTerm(rawVars, rawVals, t)
	if result == yices2.NullTerm {
		return yices2.NullTerm, fmt.Errorf("subst: %s", yices2.ErrorString())
	}
	return result, nil
}

// ParseBool 解析Yices文本语法的公式
// 公式里的名字必须是已经SetTermName过的项
func ParseBool(src string) (*Bool, error) {
	term := yices2.ParseTerm(src)
	if term == yices2.NullTerm {
		return nil, fmt.Errorf("parse %q: %s", src, yices2.ErrorString())
	}
	if !yices2.TypeIsBool(yices2.TypeOfTerm(term)) {
		return nil, fmt.Errorf("parse %q: not a boolean term", src)
	}
	return NewBoolFromTerm(term), nil
}

package smt

import (
	"fmt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

// Status 求解结果
type Status int

const (
	StatusSat Status = iota
	StatusUnsat
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusSat:
		return "sat"
	case StatusUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

type Solver struct {
	ctx yices2.ContextT
}

func NewSolver() *Solver {
	s := &Solver{
		ctx: yices2.ContextT{},
	}
	yices2.InitContext(yices2.ConfigT{}, &s.ctx)
	return s
}

func (s *Solver) Assert(terms ...*Bool) error {
	raw := make([]yices2.TermT, len(terms))
	for i := range terms {
		raw[i] = terms[i].GetRaw()
	}
	errorcode := yices2.AssertFormulas(s.ctx, raw)
	if errorcode < 0 {
		return fmt.Errorf("%s", yices2.ErrorString())
	}
	return nil
}

// Check check-sat，sat时返回model
func (s *Solver) Check() (Status, *Model, error) {
	status := yices2.CheckContext(s.ctx, yices2.ParamT{})
	switch status {
	case yices2.StatusSat:
		model := yices2.GetModel(s.ctx, 1)
		if model == nil {
			return StatusUnknown, nil, fmt.Errorf("get model: %s", yices2.ErrorString())
		}
		return StatusSat, NewModel(model), nil
	case yices2.StatusUnsat:
		return StatusUnsat, nil, nil
	}
	return StatusUnknown, nil, nil
}

// Push 保存求解器状态，配合Pop实现scoped查询
func (s *Solver) Push() error {
	errorcode := yices2.Push(s.ctx)
	if errorcode < 0 {
		return fmt.Errorf("push: %s", yices2.ErrorString())
	}
	return nil
}

func (s *Solver) Pop() error {
	errorcode := yices2.Pop(s.ctx)
	if errorcode < 0 {
		return fmt.Errorf("pop: %s", yices2.ErrorString())
	}
	return nil
}

func (s *Solver) GetContext() yices2.ContextT {
	return s.ctx
}

func (s *Solver) Close() {
	yices2.CloseContext(&s.ctx)
}

package smt

import (
	"fmt"
	"math/big"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

// Model 反例模型，变量名 -> 具体值
type Model struct {
	raw *yices2.ModelT
}

func NewModel(raw *yices2.ModelT) *Model {
	return &Model{raw: raw}
}

func (m *Model) GetRaw() *yices2.ModelT {
	return m.raw
}

// BvValue 取bv在模型下的具体值
func (m *Model) BvValue(bv *BitVec) (*big.Int, error) {
	size := yices2.TermBitsize(bv.GetRaw())
	intVal := make([]int32, size)
	errcode := yices2.GetBvValue(*m.raw, bv.GetRaw(), intVal)
	if errcode != 0 {
		return nil, fmt.Errorf("GetBvValue: %s", yices2.ErrorString())
	}
	result := big.NewInt(0)
	for i := 0; i < len(intVal); i++ {
		result = result.SetBit(result, i, uint(intVal[i]))
	}
	return result, nil
}

func (m *Model) BoolValue(b *Bool) (bool, error) {
	var val int32
	errcode := yices2.GetBoolValue(*m.raw, b.GetRaw(), &val)
	if errcode != 0 {
		return false, fmt.Errorf("GetBoolValue: %s", yices2.ErrorString())
	}
	return val != 0, nil
}

// Values 按名字批量取值，给replay导出用
func (m *Model) Values(vars map[string]*BitVec) map[string]*big.Int {
	result := make(map[string]*big.Int, len(vars))
	for name, bv := range vars {
		val, err := m.BvValue(bv)
		if err != nil {
			continue
		}
		result[name] = val
	}
	return result
}

package ir

import "fmt"

// Endian 字节序
type Endian int

const (
	LittleEndian Endian = iota
	BigEndian
)

func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// Arch 由外部lifter提供的架构元数据
type Arch struct {
	Name string `json:"name"`
	// 通用寄存器宽度
	WordSize uint32 `json:"word_size"`
	// 指针宽度，通常等于WordSize
	PtrSize uint32   `json:"ptr_size"`
	Endian  Endian   `json:"endian"`
	Regs    []string `json:"regs"`
	// 栈指针寄存器名
	SP string `json:"sp"`
	// 调用返回值寄存器名
	RetReg string `json:"ret_reg"`
	// 调用约定: 被调用方可能改写的寄存器
	CallerSaved []string `json:"caller_saved"`
	// 调用约定: 参数寄存器，按序
	ArgRegs []string `json:"arg_regs"`
}

func (a *Arch) HasReg(name string) bool {
	for _, r := range a.Regs {
		if r == name {
			return true
		}
	}
	return false
}

func (a *Arch) Validate() error {
	if a.WordSize == 0 {
		return fmt.Errorf("arch %s: word_size is 0", a.Name)
	}
	if a.PtrSize == 0 {
		a.PtrSize = a.WordSize
	}
	if len(a.Regs) == 0 {
		return fmt.Errorf("arch %s: empty register set", a.Name)
	}
	if a.SP != "" && !a.HasReg(a.SP) {
		return fmt.Errorf("arch %s: unknown stack pointer %q", a.Name, a.SP)
	}
	for _, r := range a.CallerSaved {
		if !a.HasReg(r) {
			return fmt.Errorf("arch %s: unknown caller-saved register %q", a.Name, r)
		}
	}
	return nil
}

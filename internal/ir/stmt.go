package ir

// 块内语句: 赋值、跳转、phi

type Stmt interface {
	isStmt()
	// TID 语句标识，反例溯源用
	TID() string
}

type Def struct {
	ID  string
	Lhs Var
	Rhs Exp
}

type JmpKind string

const (
	JmpGoto JmpKind = "goto"
	JmpCall JmpKind = "call"
	JmpRet  JmpKind = "ret"
	JmpInt  JmpKind = "int"
)

// Target 跳转目标，三种形态互斥:
// Direct是块ID，Sym是调用符号，Indirect是计算出的地址
type Target struct {
	Direct   string
	Sym      string
	Indirect Exp
	// Return call返回后的落点块，ret/goto为空
	Return string
}

type Jmp struct {
	ID   string
	Kind JmpKind
	// Cond nil表示无条件
	Cond      Exp
	Target    Target
	Interrupt int
}

// Phi 合流点选值，按前驱块ID取对应表达式
type Phi struct {
	ID     string
	Lhs    Var
	Values map[string]Exp
}

func (d *Def) isStmt() {}
func (j *Jmp) isStmt() {}
func (p *Phi) isStmt() {}

func (d *Def) TID() string { return d.ID }
func (j *Jmp) TID() string { return j.ID }
func (p *Phi) TID() string { return p.ID }

// IsIndirect 间接跳转无法解析，默认策略按skip处理
func (j *Jmp) IsIndirect() bool {
	return j.Target.Direct == "" && j.Target.Sym == "" && j.Target.Indirect != nil
}

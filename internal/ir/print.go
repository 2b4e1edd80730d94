package ir

import (
	"fmt"
	"sort"
	"strings"
)

// 规范文本形式，调试输出和code hash共用
// 同一棵IR永远打出同一个串

func ExpString(e Exp) string {
	switch exp := e.(type) {
	case *Const:
		return fmt.Sprintf("0x%s:%d", exp.Val.Text(16), exp.Width)
	case *VarRef:
		return fmt.Sprintf("%s:%d", exp.Var.Name, exp.Var.Width)
	case *BinOp:
		return fmt.Sprintf("(%s %s %s)", exp.Op, ExpString(exp.L), ExpString(exp.R))
	case *UnOp:
		return fmt.Sprintf("(%s %s)", exp.Op, ExpString(exp.E))
	case *Cast:
		return fmt.Sprintf("(%s:%d %s)", exp.Kind, exp.Width, ExpString(exp.E))
	case *Load:
		return fmt.Sprintf("%s[%s]:%d%s", ExpString(exp.Mem), ExpString(exp.Addr), exp.Bytes, endianMark(exp.Endian))
	case *Store:
		return fmt.Sprintf("%s with [%s]:%d%s <- %s",
			ExpString(exp.Mem), ExpString(exp.Addr), exp.Bytes, endianMark(exp.Endian), ExpString(exp.Val))
	case *IteExp:
		return fmt.Sprintf("(ite %s %s %s)", ExpString(exp.Cond), ExpString(exp.Then), ExpString(exp.Else))
	case *Unknown:
		return fmt.Sprintf("unknown[%s]:%d", exp.Hint, exp.Width)
	}
	return fmt.Sprintf("<%T>", e)
}

func StmtString(s Stmt) string {
	switch stmt := s.(type) {
	case *Def:
		return fmt.Sprintf("%s := %s", stmt.Lhs.Name, ExpString(stmt.Rhs))
	case *Jmp:
		var sb strings.Builder
		if stmt.Cond != nil {
			fmt.Fprintf(&sb, "when %s ", ExpString(stmt.Cond))
		}
		switch stmt.Kind {
		case JmpGoto:
			if stmt.IsIndirect() {
				fmt.Fprintf(&sb, "goto %s", ExpString(stmt.Target.Indirect))
			} else {
				fmt.Fprintf(&sb, "goto %s", stmt.Target.Direct)
			}
		case JmpCall:
			fmt.Fprintf(&sb, "call %s return %s", stmt.Target.Sym, stmt.Target.Return)
		case JmpRet:
			sb.WriteString("return")
		case JmpInt:
			fmt.Fprintf(&sb, "int 0x%x return %s", stmt.Interrupt, stmt.Target.Return)
		}
		return sb.String()
	case *Phi:
		preds := make([]string, 0, len(stmt.Values))
		for pred := range stmt.Values {
			preds = append(preds, pred)
		}
		sort.Strings(preds)
		parts := make([]string, len(preds))
		for i, pred := range preds {
			parts[i] = pred + ":" + ExpString(stmt.Values[pred])
		}
		return fmt.Sprintf("%s := phi(%s)", stmt.Lhs.Name, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("<%T>", s)
}

func endianMark(e Endian) string {
	if e == BigEndian {
		return "be"
	}
	return "le"
}

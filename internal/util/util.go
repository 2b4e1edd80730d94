package util

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"

	"wpcheck/internal/ir"
)

// CodeHash 子程序CFG的规范编码的keccak256
// 比较两个binary时先配对哈希相同的子程序，跳过逐条比对
func CodeHash(sub *ir.Sub) string {
	data := crypto.Keccak256([]byte(canonical(sub)))
	return hex.EncodeToString(data)
}

func canonical(sub *ir.Sub) string {
	blocks := make([]string, 0, len(sub.Blocks))
	for _, b := range sub.Blocks {
		stmts := make([]string, 0, len(b.Stmts))
		for _, s := range b.Stmts {
			stmts = append(stmts, ir.StmtString(s))
		}
		blocks = append(blocks, b.ID+"{"+joinSorted(b.Succs)+"}"+fmt.Sprint(stmts))
	}
	return sub.Name + "|" + sub.Entry + "|" + fmt.Sprint(blocks)
}

func joinSorted(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return fmt.Sprint(sorted)
}

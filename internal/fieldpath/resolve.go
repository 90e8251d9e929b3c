package fieldpath

import "strings"

// Separator：表单结构路径的分隔符
const Separator = "/"

// Path：已切分的字段名序列
// 约束：段名一律按字段名匹配，不解释为数组下标；同一数据集的路径只编译一次，逐条记录复用。
type Path []string

// Compile：去掉一个前导分隔符后按 "/" 切分
func Compile(p string) Path {
	return Path(strings.Split(strings.TrimPrefix(p, Separator), Separator))
}

func (p Path) String() string { return Separator + strings.Join(p, Separator) }

// 文档注释：逐段下探解析
// 返回：命中节点与 true；任一步当前值不是对象节点（缺键、null、数组、叶子）即返回 nil, false，不会 panic。
// 约束：ok=false 表示“不存在”，与命中 JSON null（KindNull, true）及数值 0 区分。
func (p Path) Resolve(root *Node) (*Node, bool) {
	if root == nil {
		return nil, false
	}
	cur := root
	for _, seg := range p {
		next, ok := cur.Field(seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Resolve：一次性解析；批量场景请先 Compile
func Resolve(root *Node, path string) (*Node, bool) {
	return Compile(path).Resolve(root)
}

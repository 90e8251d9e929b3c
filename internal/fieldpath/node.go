// 包 fieldpath：提交记录的标签树表示（对象节点 / 数组 / 叶子值），以及按字段名的路径解析
package fieldpath

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Kind：节点类型标签
type Kind uint8

const (
	KindNull Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	}
	return "null"
}

// 文档注释：标签树节点
// 背景：提交记录的字段名与嵌套深度由表单结构决定，编译期未知；统一以节点树承载，避免在业务层散落类型断言。
// 约束：对象节点保留字段出现顺序（keys），序列化时按原顺序输出；零值节点即 JSON null。
type Node struct {
	kind   Kind
	keys   []string
	fields map[string]*Node
	items  []*Node
	// str 对字符串节点为值本身，对数字节点为原始字面量（保证回写时不丢精度）
	str string
	num float64
	b   bool
}

func NewNull() *Node            { return &Node{kind: KindNull} }
func NewString(s string) *Node  { return &Node{kind: KindString, str: s} }
func NewNumber(f float64) *Node { return &Node{kind: KindNumber, num: f} }
func NewBool(b bool) *Node      { return &Node{kind: KindBool, b: b} }
func NewObject() *Node          { return &Node{kind: KindObject, fields: make(map[string]*Node)} }

func NewArray(items ...*Node) *Node {
	return &Node{kind: KindArray, items: items}
}

// Set：向对象节点写入子节点并返回自身，便于链式构造；重复键覆盖原值但保留原位置
// 约束：仅对象节点可写，其它类型调用将 panic（属于调用方编程错误）
func (n *Node) Set(key string, child *Node) *Node {
	if n.kind != KindObject {
		panic("fieldpath: Set on " + n.kind.String() + " node")
	}
	if n.fields == nil {
		n.fields = make(map[string]*Node)
	}
	if _, ok := n.fields[key]; !ok {
		n.keys = append(n.keys, key)
	}
	if child == nil {
		child = NewNull()
	}
	n.fields[key] = child
	return n
}

// Kind：nil 节点按 null 处理
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) IsNull() bool { return n.Kind() == KindNull }

// Field：读取对象节点的子字段；非对象节点（含 nil、数组、叶子）一律返回未命中
func (n *Node) Field(name string) (*Node, bool) {
	if n == nil || n.kind != KindObject {
		return nil, false
	}
	c, ok := n.fields[name]
	return c, ok
}

// Keys：对象字段名（按出现顺序的副本）
func (n *Node) Keys() []string {
	if n == nil || n.kind != KindObject {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

func (n *Node) Items() []*Node {
	if n == nil || n.kind != KindArray {
		return nil
	}
	return n.items
}

// Len：对象为字段数，数组为元素数，其余为 0
func (n *Node) Len() int {
	switch n.Kind() {
	case KindObject:
		return len(n.keys)
	case KindArray:
		return len(n.items)
	}
	return 0
}

func (n *Node) AsString() (string, bool) {
	if n == nil || n.kind != KindString {
		return "", false
	}
	return n.str, true
}

func (n *Node) AsNumber() (float64, bool) {
	if n == nil || n.kind != KindNumber {
		return 0, false
	}
	return n.num, true
}

func (n *Node) AsBool() (bool, bool) {
	if n == nil || n.kind != KindBool {
		return false, false
	}
	return n.b, true
}

// 文档注释：从已解码的 Go 值构建节点树
// 背景：测试与上游适配时常持有 map[string]any；map 无序，键按字典序写入以保证输出稳定。
func FromValue(v any) *Node {
	switch x := v.(type) {
	case nil:
		return NewNull()
	case *Node:
		if x == nil {
			return NewNull()
		}
		return x
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		n := NewObject()
		for _, k := range keys {
			n.Set(k, FromValue(x[k]))
		}
		return n
	case []any:
		items := make([]*Node, 0, len(x))
		for _, it := range x {
			items = append(items, FromValue(it))
		}
		return NewArray(items...)
	case []float64:
		items := make([]*Node, 0, len(x))
		for _, f := range x {
			items = append(items, NewNumber(f))
		}
		return NewArray(items...)
	case string:
		return NewString(x)
	case bool:
		return NewBool(x)
	case float64:
		return NewNumber(x)
	case float32:
		return NewNumber(float64(x))
	case int:
		return NewNumber(float64(x))
	case int64:
		return NewNumber(float64(x))
	case json.Number:
		n, err := numberNode(x.String())
		if err != nil {
			return NewString(x.String())
		}
		return n
	}
	return NewString(fmt.Sprint(v))
}

// Parse：解析 JSON 文本为节点树
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("fieldpath: trailing data after json value")
	}
	return n, nil
}

func (n *Node) UnmarshalJSON(data []byte) error {
	p, err := Parse(data)
	if err != nil {
		return err
	}
	*n = *p
	return nil
}

func decode(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("fieldpath: unexpected object key %v", kt)
				}
				child, err := decode(dec)
				if err != nil {
					return nil, err
				}
				n.Set(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := NewArray()
			for dec.More() {
				child, err := decode(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("fieldpath: unexpected delimiter %q", rune(v))
	case string:
		return NewString(v), nil
	case json.Number:
		return numberNode(v.String())
	case bool:
		return NewBool(v), nil
	case nil:
		return NewNull(), nil
	}
	return nil, fmt.Errorf("fieldpath: unexpected token %v", tok)
}

// numberNode：超出 float64 范围的字面量保留为 ±Inf，由上层按非有限值处理
func numberNode(lit string) (*Node, error) {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, err
	}
	return &Node{kind: KindNumber, num: f, str: lit}, nil
}

func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.Kind() {
	case KindObject:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := n.fields[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindString:
		sb, _ := json.Marshal(n.str)
		buf.Write(sb)
	case KindNumber:
		if n.str != "" {
			buf.WriteString(n.str)
			return nil
		}
		if math.IsNaN(n.num) || math.IsInf(n.num, 0) {
			return fmt.Errorf("fieldpath: cannot encode non-finite number %v", n.num)
		}
		buf.WriteString(strconv.FormatFloat(n.num, 'g', -1, 64))
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.b))
	default:
		buf.WriteString("null")
	}
	return nil
}

// 包 submission：调查提交记录（动态字段树 + 系统元数据）、表单字段结构与审核状态统计
package submission

import (
	"time"

	"survey-map/internal/fieldpath"
)

// ReviewState：提交记录的审核生命周期状态
type ReviewState string

const (
	StateSubmitted ReviewState = "submitted"
	StateHasIssues ReviewState = "hasIssues"
	StateEdited    ReviewState = "edited"
	StateApproved  ReviewState = "approved"
	StateRejected  ReviewState = "rejected"
)

// 系统元数据位置：OData 接口位于 __id / __system，REST 列表位于顶层
var (
	odataID     = fieldpath.Compile("__id")
	restID      = fieldpath.Compile("instanceId")
	restReview  = fieldpath.Compile("reviewState")
	odataReview = fieldpath.Compile("__system/reviewState")
	odataDate   = fieldpath.Compile("__system/submissionDate")
	restDate    = fieldpath.Compile("createdAt")
)

// 文档注释：提交记录
// 背景：字段名与嵌套由表单决定，记录整体以节点树保存；元数据按需从树中读取。
// 约束：零值 Record 视为空对象，所有读取均返回未命中而非 panic。
type Record struct {
	root *fieldpath.Node
}

func NewRecord(n *fieldpath.Node) Record { return Record{root: n} }

// FromMap：测试与适配场景下从 map 构建
func FromMap(m map[string]any) Record { return Record{root: fieldpath.FromValue(m)} }

func (r Record) Root() *fieldpath.Node { return r.root }

// Lookup：按已编译路径读取字段
func (r Record) Lookup(p fieldpath.Path) (*fieldpath.Node, bool) { return p.Resolve(r.root) }

func (r Record) stringAt(paths ...fieldpath.Path) (string, bool) {
	for _, p := range paths {
		if v, ok := p.Resolve(r.root); ok {
			if s, ok := v.AsString(); ok {
				return s, true
			}
		}
	}
	return "", false
}

// ID：系统标识，优先 OData 的 __id，其次 REST 的 instanceId
func (r Record) ID() string {
	s, _ := r.stringAt(odataID, restID)
	return s
}

// ReviewState：缺失或为 null 时返回 false
func (r Record) ReviewState() (ReviewState, bool) {
	s, ok := r.stringAt(restReview, odataReview)
	return ReviewState(s), ok
}

func (r Record) SubmissionDate() (time.Time, bool) {
	s, ok := r.stringAt(odataDate, restDate)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.root == nil {
		return []byte("{}"), nil
	}
	return r.root.MarshalJSON()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	n, err := fieldpath.Parse(data)
	if err != nil {
		return err
	}
	r.root = n
	return nil
}

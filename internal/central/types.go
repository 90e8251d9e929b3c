package central

// Project：项目（获取后不可变，重新获取时整体替换）
type Project struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Form：表单（即数据集）元信息
type Form struct {
	XMLFormID string `json:"xmlFormId"`
	Name      string `json:"name"`
	State     string `json:"state"`
}

// Dataset：表单及其审核状态统计
type Dataset struct {
	DatasetID string `json:"xmlFormId"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Total     int    `json:"total"`
	Edited    int    `json:"edited"`
	Rejected  int    `json:"rejected"`
	Approved  int    `json:"approved"`
}

// User：当前登录用户
type User struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Username：displayName 优先，其次 email，均缺失时为 Guest
func (u User) Username() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return "Guest"
}

// Session：远端签发的会话（本服务只转发，不签发）
type Session struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Query：OData 提交列表参数
type Query struct {
	Select []string
	Filter string
	Top    int
}

// FilterNotRejected：排除已驳回提交的 OData 过滤表达式
const FilterNotRejected = "__system/reviewState ne 'rejected'"

package submission

// Counts：单个数据集的审核状态统计，每次由当前批次重新计算，不跨数据集合并
type Counts struct {
	ID       string `json:"id"`
	Total    int    `json:"total"`
	Edited   int    `json:"edited"`
	Rejected int    `json:"rejected"`
	Approved int    `json:"approved"`
}

// 文档注释：单次遍历统计审核状态
// 约束：Total 为输入长度，排除过滤由调用方在上游完成；状态按区分大小写的精确匹配计数，
// 缺失或未知状态只计入 Total。
func Aggregate(records []Record, datasetID string) Counts {
	c := Counts{ID: datasetID, Total: len(records)}
	for _, r := range records {
		st, _ := r.ReviewState()
		switch st {
		case StateEdited:
			c.Edited++
		case StateRejected:
			c.Rejected++
		case StateApproved:
			c.Approved++
		}
	}
	return c
}

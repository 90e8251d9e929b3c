package submission

// TypeGeopoint：字段结构中地理点字段的类型名
const TypeGeopoint = "geopoint"

// FieldSchemaEntry：表单字段结构项（每个数据集获取一次）
type FieldSchemaEntry struct {
	Path           string `json:"path"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Binary         *bool  `json:"binary"`
	SelectMultiple *bool  `json:"selectMultiple"`
}

// DetectGeoPath：返回第一个 geopoint 字段的路径；存在多个时只取第一个
func DetectGeoPath(fields []FieldSchemaEntry) (string, bool) {
	for _, f := range fields {
		if f.Type == TypeGeopoint {
			return f.Path, true
		}
	}
	return "", false
}

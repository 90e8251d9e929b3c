// 包 geopoint：按数据集的地理点字段路径，从提交记录批量提取坐标点
package geopoint

import (
	"math"

	"survey-map/internal/fieldpath"
	"survey-map/internal/logger"
	"survey-map/internal/metrics"
	"survey-map/internal/submission"
)

// GeoPoint：派生坐标点（WGS84），不落库
type GeoPoint struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Entity：坐标点连同完整原始记录，供详情查看
type Entity struct {
	GeoPoint
	Record submission.Record `json:"fullData"`
}

// 丢弃原因（指标标签）
const (
	dropAbsent = "absent"
	dropShape  = "shape"
	dropRange  = "range"
)

// 文档注释：将单个地理值转换为纬度/经度
// 约束：值须为对象且携带 coordinates 数组，至少两个数值元素，顺序为 GeoJSON 的 [经度, 纬度]；
// 输出交换为 lat, lon。字符串坐标、缺失数组、非有限值或越界均返回 false。
func Parse(v *fieldpath.Node) (lat, lon float64, ok bool) {
	lat, lon, reason := parse(v)
	return lat, lon, reason == ""
}

func parse(v *fieldpath.Node) (float64, float64, string) {
	coords, ok := v.Field("coordinates")
	if !ok || coords.Kind() != fieldpath.KindArray || coords.Len() < 2 {
		return 0, 0, dropShape
	}
	items := coords.Items()
	lon, okLon := items[0].AsNumber()
	lat, okLat := items[1].AsNumber()
	if !okLon || !okLat {
		return 0, 0, dropShape
	}
	if !finite(lat) || !finite(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, dropRange
	}
	return lat, lon, ""
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// 文档注释：批量提取坐标点
// 约束：geoPath 为空表示该数据集无地理点字段，直接返回空列表；路径只编译一次，对每条记录统一使用。
// 不合规记录静默丢弃（数据质量过滤，非错误），输出保持输入顺序。
func Extract(records []submission.Record, geoPath string) []GeoPoint {
	out := []GeoPoint{}
	walk(records, geoPath, func(r submission.Record, p GeoPoint) {
		out = append(out, p)
	})
	return out
}

// ExtractEntities：与 Extract 相同的过滤，但保留完整记录
func ExtractEntities(records []submission.Record, geoPath string) []Entity {
	out := []Entity{}
	walk(records, geoPath, func(r submission.Record, p GeoPoint) {
		out = append(out, Entity{GeoPoint: p, Record: r})
	})
	return out
}

func walk(records []submission.Record, geoPath string, emit func(submission.Record, GeoPoint)) {
	if geoPath == "" || len(records) == 0 {
		return
	}
	path := fieldpath.Compile(geoPath)
	dropped := 0
	for _, r := range records {
		v, ok := r.Lookup(path)
		if !ok {
			dropped++
			metrics.GeoPointsDroppedTotal.WithLabelValues(dropAbsent).Inc()
			continue
		}
		lat, lon, reason := parse(v)
		if reason != "" {
			dropped++
			metrics.GeoPointsDroppedTotal.WithLabelValues(reason).Inc()
			continue
		}
		emit(r, GeoPoint{ID: r.ID(), Lat: lat, Lon: lon})
	}
	if dropped > 0 {
		logger.L().Debug("geopoint_dropped", "path", geoPath, "records", len(records), "dropped", dropped)
	}
}

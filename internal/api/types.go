package api

import (
	"survey-map/internal/geopoint"
	"survey-map/internal/submission"
)

// 文档注释：数据表视图响应
// 约束：geoPointPath 在数据集没有地理点字段时为 null。
type submissionsResult struct {
	Submissions        []submission.Record `json:"submissions"`
	Entities           []geopoint.Entity   `json:"entities"`
	GeoPointsAvailable bool                `json:"geoPointsAvailable"`
	TotalSubmissions   int                 `json:"totalSubmissions"`
	GeoPointPath       *string             `json:"geoPointPath"`
}

type reviewItem struct {
	ID          string                  `json:"id"`
	ReviewState *submission.ReviewState `json:"reviewState"`
}

type userResult struct {
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

package store

import (
	"survey-map/internal/central"
	"survey-map/internal/geopoint"
	"survey-map/internal/submission"
)

// Loading：各快照分区的加载标记
type Loading struct {
	Projects    bool `json:"projects"`
	GeoPoints   bool `json:"geoPoints"`
	Submissions bool `json:"submissions"`
	Counts      bool `json:"counts"`
}

// 文档注释：只读快照
// 约束：发布后不再修改；调用方不得改写其中的切片。每次完成的获取操作整体替换一个新快照，
// 读方不会看到逐字段的中间状态。
type Snapshot struct {
	Projects           []central.Project    `json:"projects"`
	Submissions        []submission.Record  `json:"submissions"`
	Entities           []geopoint.Entity    `json:"entities"`
	GeoPoints          []geopoint.GeoPoint  `json:"geoPoints"`
	GeoPointsAvailable bool                 `json:"geoPointsAvailable"`
	GeoPointPath       string               `json:"geoPointPath"`
	SubmissionCounts   submission.Counts    `json:"submissionCounts"`
	Loading            Loading              `json:"loading"`
	// Version 每次发布递增
	Version uint64 `json:"version"`
}

// slot：快照分区；序号与加载标记按分区维护
type slot int

const (
	slotProjects slot = iota
	slotGeo
	slotSubmissions
	slotCounts
	numSlots
)

func (l *Loading) set(sl slot, v bool) {
	switch sl {
	case slotProjects:
		l.Projects = v
	case slotGeo:
		l.GeoPoints = v
	case slotSubmissions:
		l.Submissions = v
	case slotCounts:
		l.Counts = v
	}
}

// resetSlot：分区回到文档约定的空值
func resetSlot(s *Snapshot, sl slot) {
	switch sl {
	case slotProjects:
		s.Projects = []central.Project{}
	case slotGeo:
		s.GeoPoints = []geopoint.GeoPoint{}
		s.GeoPointsAvailable = false
		s.GeoPointPath = ""
	case slotSubmissions:
		s.Submissions = []submission.Record{}
		s.Entities = []geopoint.Entity{}
	case slotCounts:
		s.SubmissionCounts = submission.Counts{}
	}
}

func emptySnapshot() *Snapshot {
	s := &Snapshot{}
	for sl := slot(0); sl < numSlots; sl++ {
		resetSlot(s, sl)
	}
	return s
}

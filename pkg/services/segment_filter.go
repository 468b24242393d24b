package services

import (
	"strings"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"
)

var segmentColumns = []string{colRegion, colCategory, colSubCategory}

// FilterSegment は指定されたすべての条件に一致する行だけに絞り込みます。
// 条件が未指定でもセグメント3列は必須です。
// 結果が0行でもそのまま返し、呼び出し側で扱います。
func FilterSegment(frame *models.SalesFrame, filter models.SegmentFilter) (*models.SalesFrame, error) {
	if frame == nil {
		return nil, apperrors.Schema("no data loaded")
	}
	if !frame.HasSegments {
		var missing []string
		for _, col := range segmentColumns {
			if indexOf(frame.Columns, col) == -1 {
				missing = append(missing, col)
			}
		}
		return nil, apperrors.Schema("missing required segmentation column: %s", strings.Join(missing, ", "))
	}

	filter = models.SegmentFilter{
		Region:      strings.TrimSpace(filter.Region),
		Category:    strings.TrimSpace(filter.Category),
		SubCategory: strings.TrimSpace(filter.SubCategory),
	}
	if filter.IsEmpty() {
		return frame, nil
	}

	out := &models.SalesFrame{
		DateColumn:  frame.DateColumn,
		HasSegments: frame.HasSegments,
		Columns:     frame.Columns,
		Records:     make([]models.SalesRecord, 0, len(frame.Records)),
	}
	for _, r := range frame.Records {
		if filter.Region != "" && r.Region != filter.Region {
			continue
		}
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		if filter.SubCategory != "" && r.SubCategory != filter.SubCategory {
			continue
		}
		out.Records = append(out.Records, r)
	}
	return out, nil
}

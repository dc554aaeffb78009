package audit

import (
	"time"

	"github.com/clientportal/portal/internal/store"
)

// TimelineFilters narrows the activity timeline.
type TimelineFilters struct {
	From         time.Time
	To           time.Time
	UserID       string
	ResourceType string
	Page         int
	PageSize     int
}

func (f TimelineFilters) query() store.ActivityFilter {
	return store.ActivityFilter{
		UserID:       f.UserID,
		ResourceType: f.ResourceType,
		From:         f.From,
		To:           f.To,
	}
}

// PagingInfo describes one page of the timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	Total    int  `json:"total"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []store.ActivityEntry `json:"rows"`
	Paging PagingInfo            `json:"paging"`
}

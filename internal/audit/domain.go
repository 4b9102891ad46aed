// Package audit persists authorization outcomes and serves the audit
// timeline. Events arrive asynchronously through the task queue so the
// guard never waits on a database write.
package audit

import "time"

// Entry is one persisted authorization outcome.
type Entry struct {
	ID          int64     `json:"id"`
	PrincipalID int64     `json:"principalId"`
	SocieteID   string    `json:"societeId"`
	Route       string    `json:"route"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// TimelineFilters narrows a timeline window.
type TimelineFilters struct {
	From        time.Time
	To          time.Time
	SocieteID   string
	PrincipalID int64
	Outcome     string
	Page        int
	PageSize    int
}

// PagingInfo holds simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

package domain

type CollegeStats struct {
	CollegeName          string `json:"collegeName"`
	UserCount            int64  `json:"userCount"`
	ApplicationCount     int64  `json:"applicationCount"`
	BulkApplicationCount int64  `json:"bulkApplicationCount"`
}

type StatsTotals struct {
	Users            int64 `json:"users"`
	Jobs             int64 `json:"jobs"`
	Applications     int64 `json:"applications"`
	BulkApplications int64 `json:"bulkApplications"`
}

type AdminStats struct {
	Colleges     []*CollegeStats      `json:"colleges"`
	Applications []*ApplicationDetail `json:"applications"`
	Totals       StatsTotals          `json:"totals"`
}

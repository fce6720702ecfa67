package models

// SearchResult is a single ranked hit. Scores are cosine similarities clamped
// to [0, 1]; Rank is 1-based position in the returned list.
type SearchResult struct {
	CaseID  string        `json:"case_id"`
	Title   string        `json:"title"`
	Source  Source        `json:"source"`
	Score   float64       `json:"score"`
	Rank    int           `json:"rank"`
	Snippet string        `json:"snippet"`
	FileRef string        `json:"file_ref"`
	Helper  *HelperExtras `json:"helper,omitempty"`
}

// SearchResponse is the response for a similarity search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
}

package domain

type SearchRequest struct {
	Query string
	Limit int
}

type SearchResult struct {
	Title     string `json:"title"`
	SizeLabel string `json:"size"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
	Seeders   int    `json:"seeders"`
	Leechers  int    `json:"leechers"`
	Locator   string `json:"locator"`
	Source    string `json:"source"`
}

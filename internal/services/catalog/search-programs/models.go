// internal/services/catalog/search-programs/models.go
package searchprograms

type Input struct {
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
	From     int    `json:"from,omitempty"`
	Size     int    `json:"size,omitempty"`
}

type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Program struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Courses     []Course `json:"courses,omitempty"`
}

type Output struct {
	Programs  []Program `json:"programs"`
	TotalHits int64     `json:"totalHits"`
	Took      int       `json:"took"`
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string  `json:"_id"`
			Source Program `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type getResponse struct {
	ID     string  `json:"_id"`
	Found  bool    `json:"found"`
	Source Program `json:"_source"`
}

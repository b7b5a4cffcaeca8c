package model

// Page is one fetched page of a column's task list.
type Page struct {
	Items []Task `json:"items"`
	// Total is the server reported number of tasks in the column.
	Total int `json:"total"`
	// NextPage is the 1-based page number to fetch next, 0 when exhausted.
	NextPage int `json:"nextPage,omitempty"`
}

func (p Page) HasNext() bool {
	return p.NextPage > 0
}

// NextPageAfter returns page+1 when more tasks remain after page, else 0.
func NextPageAfter(page, pageSize, total int) int {
	if page*pageSize < total {
		return page + 1
	}
	return 0
}

// Clone copies the page so the result shares no backing array with p.
func (p Page) Clone() Page {
	out := p
	if p.Items != nil {
		out.Items = make([]Task, len(p.Items))
		copy(out.Items, p.Items)
	}
	return out
}

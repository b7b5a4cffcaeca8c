package querycache

import (
	"taskboard/internal/model"
)

// KindTasks is the entity kind of paginated task lists.
const KindTasks = "tasks"

// Key addresses a cached list. A Key with an empty Column used as a prefix
// matches every column of its Kind.
type Key struct {
	Kind   string
	Column model.Column
}

// TasksKey is the key of one column's task list.
func TasksKey(c model.Column) Key {
	return Key{Kind: KindTasks, Column: c}
}

// AllTasks is the prefix matching every task list.
func AllTasks() Key {
	return Key{Kind: KindTasks}
}

// Matches reports whether k falls under prefix.
func (k Key) Matches(prefix Key) bool {
	if k.Kind != prefix.Kind {
		return false
	}
	return prefix.Column == "" || prefix.Column == k.Column
}

func (k Key) String() string {
	if k.Column == "" {
		return k.Kind
	}
	return k.Kind + "/" + string(k.Column)
}

// Data is the cached value of a paginated list: the pages fetched so far.
type Data struct {
	Pages []model.Page
}

// Clone deep copies the pages so the result can be changed freely.
func (d Data) Clone() Data {
	if d.Pages == nil {
		return Data{}
	}
	pages := make([]model.Page, len(d.Pages))
	for i, p := range d.Pages {
		pages[i] = p.Clone()
	}
	return Data{Pages: pages}
}

// Tasks flattens every page's items in page order.
func (d Data) Tasks() []model.Task {
	var out []model.Task
	for _, p := range d.Pages {
		out = append(out, p.Items...)
	}
	return out
}

// Total is the first page's running total.
func (d Data) Total() int {
	if len(d.Pages) == 0 {
		return 0
	}
	return d.Pages[0].Total
}

// NextPage is the page to request after the last fetched one, 0 when done.
func (d Data) NextPage() int {
	if len(d.Pages) == 0 {
		return 0
	}
	return d.Pages[len(d.Pages)-1].NextPage
}

func (d Data) HasNext() bool {
	return d.NextPage() > 0
}

// Find returns the task with id and whether it is present on any page.
func (d Data) Find(id model.TaskID) (model.Task, bool) {
	for _, p := range d.Pages {
		for _, t := range p.Items {
			if t.ID == id {
				return t, true
			}
		}
	}
	return model.Task{}, false
}

// MaxOrder is the largest order among loaded tasks and whether any exist.
func (d Data) MaxOrder() (float64, bool) {
	var (
		highest float64
		found   bool
	)
	for _, p := range d.Pages {
		for _, t := range p.Items {
			if !found || t.Order > highest {
				highest, found = t.Order, true
			}
		}
	}
	return highest, found
}

package dataset

import (
	"fmt"
	"sync"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

// GroupView is one row of the grouped listing.
type GroupView struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
	Selected bool    `json:"selected"`
}

// View is a consistent snapshot of the presenter.
type View struct {
	Groups      []GroupView `json:"groups"`
	AllSelected bool        `json:"allSelected"`
	RecordCount int         `json:"recordCount"`
}

// Presenter holds the consolidated dataset with its derived groups and the
// selection over them. Loading a new dataset resets the selection.
type Presenter struct {
	mu        sync.RWMutex
	records   []domain.ExtractedRecord
	groups    []Group
	selection Selection
}

func NewPresenter() *Presenter {
	return &Presenter{selection: Selection{}}
}

func (p *Presenter) Load(records []domain.ExtractedRecord) {
	owned := make([]domain.ExtractedRecord, len(records))
	copy(owned, records)
	groups := GroupByPayee(owned)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = owned
	p.groups = groups
	p.selection = Selection{}
}

func (p *Presenter) Clear() {
	p.Load(nil)
}

func (p *Presenter) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()

	views := make([]GroupView, 0, len(p.groups))
	for _, g := range p.groups {
		views = append(views, GroupView{
			Key:      g.Key,
			Count:    g.Count(),
			Total:    g.Total,
			Selected: p.selection[g.Key],
		})
	}

	return View{
		Groups:      views,
		AllSelected: AllSelected(p.groups, p.selection),
		RecordCount: len(p.records),
	}
}

// Groups returns the groups with their records.
func (p *Presenter) Groups() []Group {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Group, len(p.groups))
	copy(out, p.groups)
	return out
}

func (p *Presenter) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}

func (p *Presenter) Toggle(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasGroup(key) {
		return fmt.Errorf("%w: group %q", domain.ErrNotFound, key)
	}
	p.selection = p.selection.Toggle(key)
	return nil
}

func (p *Presenter) ToggleAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = ToggleAll(p.groups, p.selection)
}

// ExportRequest builds the export for batchID from the current selection.
func (p *Presenter) ExportRequest(batchID string) domain.ExportRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewExportRequest(batchID, SelectedKeys(p.groups, p.selection))
}

func (p *Presenter) hasGroup(key string) bool {
	for _, g := range p.groups {
		if g.Key == key {
			return true
		}
	}
	return false
}

package dataset

import "github.com/kursadbilgin/extraction-orchestrator/internal/domain"

// Selection marks group keys chosen for export. Missing keys are unselected.
type Selection map[string]bool

// Toggle returns a copy of s with key flipped.
func (s Selection) Toggle(key string) Selection {
	out := s.clone()
	if out[key] {
		delete(out, key)
	} else {
		out[key] = true
	}
	return out
}

// AllSelected is true when there is at least one group and every group is
// selected.
func AllSelected(groups []Group, s Selection) bool {
	if len(groups) == 0 {
		return false
	}
	for _, g := range groups {
		if !s[g.Key] {
			return false
		}
	}
	return true
}

// ToggleAll clears s when every group is selected and selects every group
// otherwise.
func ToggleAll(groups []Group, s Selection) Selection {
	if AllSelected(groups, s) {
		return Selection{}
	}

	out := make(Selection, len(groups))
	for _, g := range groups {
		out[g.Key] = true
	}
	return out
}

// SelectedKeys lists selected keys in group order.
func SelectedKeys(groups []Group, s Selection) []string {
	keys := make([]string, 0, len(s))
	for _, g := range groups {
		if s[g.Key] {
			keys = append(keys, g.Key)
		}
	}
	return keys
}

// NewExportRequest scopes the export to keys, or to everything when keys is
// empty.
func NewExportRequest(batchID string, keys []string) domain.ExportRequest {
	if len(keys) == 0 {
		return domain.ExportRequest{BatchID: batchID, Scope: domain.ExportAll}
	}

	payees := make([]string, len(keys))
	copy(payees, keys)
	return domain.ExportRequest{BatchID: batchID, Scope: domain.ExportSelected, Payees: payees}
}

func (s Selection) clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		if v {
			out[k] = v
		}
	}
	return out
}

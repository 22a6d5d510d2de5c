package domain

// ExportScope tells the export endpoint whether to filter by payee.
type ExportScope string

const (
	ExportAll      ExportScope = "all"
	ExportSelected ExportScope = "selected"
)

func (s ExportScope) String() string { return string(s) }

// ExportRequest targets the consolidated export of one batch. Payees is only
// meaningful when Scope is ExportSelected.
type ExportRequest struct {
	BatchID string
	Scope   ExportScope
	Payees  []string
}

func (r ExportRequest) Scoped() bool {
	return r.Scope == ExportSelected
}

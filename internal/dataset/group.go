package dataset

import "github.com/kursadbilgin/extraction-orchestrator/internal/domain"

// UnidentifiedPayee collects records that carry no payee.
const UnidentifiedPayee = "Titular Não Identificado"

// Group is the records of one payee in source order.
type Group struct {
	Key     string
	Records []domain.ExtractedRecord
	Total   float64
}

func (g Group) Count() int { return len(g.Records) }

// GroupByPayee groups records by payee. Groups appear in the order their key
// first occurs in records.
func GroupByPayee(records []domain.ExtractedRecord) []Group {
	groups := make([]Group, 0)
	index := make(map[string]int)

	for _, record := range records {
		key := PayeeKey(record)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Records = append(groups[i].Records, record)
		groups[i].Total += record.ApportionedAmount.Float64()
	}

	return groups
}

func PayeeKey(record domain.ExtractedRecord) string {
	if record.Payee == "" {
		return UnidentifiedPayee
	}
	return record.Payee
}

package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Amount is a monetary value that the extraction service may send either as a
// JSON number or as a formatted string. Values that cannot be read count as 0.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	if data[0] != '"' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			*a = 0
			return nil
		}
		*a = Amount(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParseAmount(s)
	return nil
}

func (a Amount) Float64() float64 { return float64(a) }

// ParseAmount reads "1234.56", "1.234,56" and "R$ 1.234,56" style values.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return Amount(f)
}

// ExtractedRecord is one royalty line produced by the extraction service.
type ExtractedRecord struct {
	Payee             string `json:"titular"`
	WorkReference     string `json:"obra_referencia"`
	CategoryCode      string `json:"rubrica"`
	Period            string `json:"periodo,omitempty"`
	PeriodStart       string `json:"periodo_inicio,omitempty"`
	PeriodEnd         string `json:"periodo_fim,omitempty"`
	GrossAmount       Amount `json:"rendimento"`
	ApportionedAmount Amount `json:"valor_rateio"`
	WorkIdentifiers   string `json:"isrc_iswc"`
	SourceFilename    string `json:"arquivo_origem"`
}

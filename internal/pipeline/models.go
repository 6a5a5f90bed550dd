package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// AmountRepresentation identifies how a source table encodes signed
// transaction values. Exactly one variant applies per statement.
type AmountRepresentation string

const (
	// DualColumnDebitCredit: separate debit and credit columns.
	DualColumnDebitCredit AmountRepresentation = "dual_column_debit_credit"
	// SingleColumnSigned: one column, debits negative, credits positive.
	SingleColumnSigned AmountRepresentation = "single_column_signed"
	// SingleColumnWithType: one magnitude column plus a type column that
	// marks each row as debit or credit.
	SingleColumnWithType AmountRepresentation = "single_column_with_type"
)

// UncategorizedCategory is the sentinel assigned when categorization fails
// or produces nothing usable. Rows are never persisted with a null category.
const UncategorizedCategory = "Uncategorized"

// DateInfo names the date column and its Go reference layout
// (e.g. "02/01/2006").
type DateInfo struct {
	ColumnName string `json:"column_name"`
	Layout     string `json:"layout"`
}

// AmountInfo carries the discovered amount representation and the column
// names needed to reconstruct a signed amount deterministically.
type AmountInfo struct {
	Representation   AmountRepresentation `json:"representation"`
	DebitColumn      string               `json:"debit_column,omitempty"`
	CreditColumn     string               `json:"credit_column,omitempty"`
	AmountColumn     string               `json:"amount_column,omitempty"`
	TypeColumn       string               `json:"type_column,omitempty"`
	DebitIdentifier  string               `json:"debit_identifier,omitempty"`
	CreditIdentifier string               `json:"credit_identifier,omitempty"`
}

// StructuralInfo is the result of the structural analysis pass. It is
// computed once per pipeline invocation and immutable afterwards.
type StructuralInfo struct {
	Date   DateInfo   `json:"date_info"`
	Amount AmountInfo `json:"amount_info"`
}

// Validate checks that the date fields are present and that the fields
// required by the chosen amount representation are populated.
func (s *StructuralInfo) Validate() error {
	if strings.TrimSpace(s.Date.ColumnName) == "" {
		return fmt.Errorf("date column name is empty")
	}
	if strings.TrimSpace(s.Date.Layout) == "" {
		return fmt.Errorf("date layout is empty")
	}
	switch s.Amount.Representation {
	case DualColumnDebitCredit:
		if s.Amount.DebitColumn == "" || s.Amount.CreditColumn == "" {
			return fmt.Errorf("dual-column representation requires debit and credit columns")
		}
	case SingleColumnSigned:
		if s.Amount.AmountColumn == "" {
			return fmt.Errorf("signed representation requires an amount column")
		}
	case SingleColumnWithType:
		if s.Amount.AmountColumn == "" || s.Amount.TypeColumn == "" {
			return fmt.Errorf("typed representation requires amount and type columns")
		}
		if s.Amount.DebitIdentifier == "" && s.Amount.CreditIdentifier == "" {
			return fmt.Errorf("typed representation requires debit or credit identifiers")
		}
	default:
		return fmt.Errorf("unknown amount representation %q", s.Amount.Representation)
	}
	return nil
}

// ConsumedColumns lists the columns claimed by structural analysis, in a
// stable order. The semantic mapper only considers the remainder.
func (s *StructuralInfo) ConsumedColumns() []string {
	seen := map[string]bool{}
	var out []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	add(s.Date.ColumnName)
	add(s.Amount.DebitColumn)
	add(s.Amount.CreditColumn)
	add(s.Amount.AmountColumn)
	add(s.Amount.TypeColumn)
	return out
}

// SemanticMapping is the result of the semantic mapping pass. An empty
// DescriptionColumn means no column was confidently identified and the
// extractor falls back to concatenating the remaining textual columns.
type SemanticMapping struct {
	DescriptionColumn string `json:"description_column"`
}

// NormalizedTransaction is the intermediate row shape after extraction:
// sign already resolved, date already parsed, no category yet.
type NormalizedTransaction struct {
	Description string
	Date        civil.Date
	Amount      decimal.Decimal
}

// CategorizedTransaction adds the category labels produced by the
// categorization pass.
type CategorizedTransaction struct {
	NormalizedTransaction
	Category    string
	SubCategory string
}

// CategoryPair is one (name, parent) row from the category hierarchy
// source. An empty Parent marks a root category.
type CategoryPair struct {
	Name   string
	Parent string
}

// CategoryHierarchy maps each parent category name to its sub-category
// names. Root entries may have empty lists. The categorizer reads it as a
// snapshot; only the persistence layer ever adds entries, transactionally.
type CategoryHierarchy map[string][]string

// HierarchyFromPairs builds a hierarchy from flat (name, parent) pairs.
// Pairs referencing an unknown parent create the parent implicitly.
func HierarchyFromPairs(pairs []CategoryPair) CategoryHierarchy {
	h := CategoryHierarchy{}
	for _, p := range pairs {
		if p.Parent == "" {
			if _, ok := h[p.Name]; !ok {
				h[p.Name] = nil
			}
			continue
		}
		h[p.Parent] = append(h[p.Parent], p.Name)
	}
	return h
}

// Contains reports whether name is a known parent category.
func (h CategoryHierarchy) Contains(name string) bool {
	_, ok := h[name]
	return ok
}

// PromptJSON renders the hierarchy as a JSON object with sorted keys so
// prompts are stable across runs.
func (h CategoryHierarchy) PromptJSON() string {
	parents := make([]string, 0, len(h))
	for p := range h {
		parents = append(parents, p)
	}
	sort.Strings(parents)

	var b strings.Builder
	b.WriteString("{\n")
	for i, p := range parents {
		fmt.Fprintf(&b, "  %q: [", p)
		for j, sub := range h[p] {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", sub)
		}
		b.WriteString("]")
		if i < len(parents)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

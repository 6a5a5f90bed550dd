package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// commonDateLayouts are tried in order when the rule-based processor probes
// a candidate date column.
var commonDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02 Jan 06",
}

// categoryRules map description keywords to (category, subcategory) labels.
// First match wins; unmatched descriptions get the sentinel.
var categoryRules = []struct {
	keyword     string
	category    string
	subCategory string
}{
	{"salary", "Income", "Salary"},
	{"payroll", "Income", "Salary"},
	{"tesco", "Groceries", ""},
	{"sainsbury", "Groceries", ""},
	{"aldi", "Groceries", ""},
	{"lidl", "Groceries", ""},
	{"uber", "Transportation", "Public Transit"},
	{"tfl", "Transportation", "Public Transit"},
	{"trainline", "Transportation", "Public Transit"},
	{"shell", "Transportation", "Fuel"},
	{"netflix", "Entertainment", "Streaming"},
	{"spotify", "Entertainment", "Streaming"},
	{"amazon", "Shopping", ""},
	{"rent", "Housing", "Rent"},
	{"mortgage", "Housing", "Mortgage"},
	{"electric", "Utilities", ""},
	{"water", "Utilities", ""},
	{"insurance", "Insurance", ""},
	{"pharmacy", "Health", ""},
	{"restaurant", "Dining", ""},
	{"coffee", "Dining", "Coffee"},
	{"atm", "Cash", ""},
	{"transfer", "Transfers", ""},
	{"fee", "Fees", ""},
	{"interest", "Income", "Interest"},
}

// RuleBasedProcessor is the offline fallback: no inference service, column
// discovery by header keywords and cell probing, categorization by keyword
// rules. It honors the same contract as AIProcessor so callers can swap the
// two behind Guarded.
type RuleBasedProcessor struct {
	extractor *Extractor
	log       zerolog.Logger
}

func NewRuleBasedProcessor(log zerolog.Logger) *RuleBasedProcessor {
	return &RuleBasedProcessor{extractor: NewExtractor(log), log: log}
}

func (p *RuleBasedProcessor) Process(ctx context.Context, raw *frame.RawFrame, onProgress ProgressFunc) (*Result, error) {
	if raw == nil || raw.Len() == 0 {
		return nil, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	onProgress.report(progressStart, "detecting statement structure")

	structural, err := p.detectStructure(raw)
	if err != nil {
		return nil, err
	}
	onProgress.report(progressStructural, "mapping columns")

	mapping := p.detectDescription(raw, structural)

	extracted, err := p.extractor.Extract(raw, structural, mapping)
	if err != nil {
		return nil, err
	}
	onProgress.report(progressSemantic, "categorizing transactions")

	result := &Result{
		RowsIn:  raw.Len(),
		RowsOut: len(extracted.Transactions),
		Dropped: extracted.Dropped,
	}
	for _, tx := range extracted.Transactions {
		category, sub := categorize(tx.Description)
		if category == UncategorizedCategory {
			result.Defaulted++
		}
		result.Table = append(result.Table, FinalRow{
			Description: tx.Description,
			Date:        tx.Date,
			Amount:      tx.Amount,
			Category:    category,
			SubCategory: sub,
		})
	}

	onProgress.report(progressDone, "processing complete")
	return result, nil
}

// detectStructure probes headers and cells instead of asking a model. It
// fails with the same error type as the analyzer so callers treat both
// processors uniformly.
func (p *RuleBasedProcessor) detectStructure(raw *frame.RawFrame) (*StructuralInfo, error) {
	info := &StructuralInfo{}

	for _, c := range raw.Columns() {
		if layout, ok := probeDateLayout(raw, c); ok {
			info.Date = DateInfo{ColumnName: c, Layout: layout}
			break
		}
	}
	if info.Date.ColumnName == "" {
		return nil, &StructuralDiscoveryError{Reason: "no parseable date column found"}
	}

	debit := columnByKeyword(raw, info.Date.ColumnName, "debit", "paid out", "money out", "withdrawal")
	credit := columnByKeyword(raw, info.Date.ColumnName, "credit", "paid in", "money in", "deposit")
	switch {
	case debit != "" && credit != "":
		info.Amount = AmountInfo{
			Representation: DualColumnDebitCredit,
			DebitColumn:    debit,
			CreditColumn:   credit,
		}
	default:
		amount := columnByKeyword(raw, info.Date.ColumnName, "amount", "value", "sum")
		if amount == "" {
			return nil, &StructuralDiscoveryError{Reason: "no amount column found"}
		}
		info.Amount = AmountInfo{
			Representation: SingleColumnSigned,
			AmountColumn:   amount,
		}
		if typeCol := columnByKeyword(raw, info.Date.ColumnName, "type", "dr/cr", "indicator"); typeCol != "" {
			info.Amount.Representation = SingleColumnWithType
			info.Amount.TypeColumn = typeCol
			info.Amount.DebitIdentifier = "DR"
			info.Amount.CreditIdentifier = "CR"
		}
	}

	if err := info.Validate(); err != nil {
		return nil, &StructuralDiscoveryError{Reason: "incomplete structural info", Err: err}
	}
	return info, nil
}

func (p *RuleBasedProcessor) detectDescription(raw *frame.RawFrame, structural *StructuralInfo) *SemanticMapping {
	remaining := remainingColumns(raw, structural)
	for _, kw := range descriptionKeywords {
		for _, c := range remaining {
			if strings.Contains(strings.ToLower(c), kw) {
				return &SemanticMapping{DescriptionColumn: c}
			}
		}
	}
	return &SemanticMapping{}
}

// probeDateLayout tries the common layouts against up to the first 10
// non-empty cells of a column; every probed cell must parse.
func probeDateLayout(raw *frame.RawFrame, column string) (string, bool) {
	var cells []string
	for i := 0; i < raw.Len() && len(cells) < 10; i++ {
		if v := strings.TrimSpace(raw.Cell(i, column)); v != "" {
			cells = append(cells, v)
		}
	}
	if len(cells) == 0 {
		return "", false
	}
	for _, layout := range commonDateLayouts {
		ok := true
		for _, cell := range cells {
			if _, err := parseDateCell(cell, layout); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return layout, true
		}
	}
	return "", false
}

func columnByKeyword(raw *frame.RawFrame, skip string, keywords ...string) string {
	for _, c := range raw.Columns() {
		if c == skip {
			continue
		}
		lower := strings.ToLower(c)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return c
			}
		}
	}
	return ""
}

func categorize(description string) (string, string) {
	lower := strings.ToLower(description)
	for _, rule := range categoryRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.category, rule.subCategory
		}
	}
	return UncategorizedCategory, ""
}

package pipeline

import (
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// maxDescriptionRunes caps synthesized descriptions built by concatenating
// textual columns.
const maxDescriptionRunes = 500

// Extractor runs the deterministic extraction pass: no inference involved,
// every rule is mechanical. Rows that cannot yield a valid date or amount
// are dropped individually and logged; extraction itself only fails when
// nothing survives.
type Extractor struct {
	log zerolog.Logger
}

func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// ExtractResult carries the surviving rows plus the drop count for
// reporting.
type ExtractResult struct {
	Transactions []NormalizedTransaction
	Dropped      int
}

// Extract converts raw rows into normalized transactions using the
// discovered structure and mapping. Row order is preserved.
func (e *Extractor) Extract(raw *frame.RawFrame, structural *StructuralInfo, mapping *SemanticMapping) (*ExtractResult, error) {
	if raw.Len() == 0 {
		return nil, ErrEmptyFrame
	}

	textualCols := e.textualColumns(raw, structural)

	res := &ExtractResult{}
	for i := 0; i < raw.Len(); i++ {
		date, ok := e.parseDate(raw.Cell(i, structural.Date.ColumnName), structural.Date.Layout, i)
		if !ok {
			res.Dropped++
			continue
		}
		amount, ok := e.resolveAmount(raw, structural, i)
		if !ok {
			res.Dropped++
			continue
		}
		res.Transactions = append(res.Transactions, NormalizedTransaction{
			Description: e.description(raw, mapping, textualCols, i),
			Date:        date,
			Amount:      amount,
		})
	}

	e.log.Info().
		Int("rows_in", raw.Len()).
		Int("rows_out", len(res.Transactions)).
		Int("dropped", res.Dropped).
		Msg("extraction complete")
	return res, nil
}

func (e *Extractor) parseDate(cell, layout string, row int) (civil.Date, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		e.log.Warn().Int("row", row).Msg("dropping row: empty date cell")
		return civil.Date{}, false
	}
	d, err := parseDateCell(cell, layout)
	if err != nil {
		e.log.Warn().Int("row", row).Str("value", cell).Err(err).Msg("dropping row: unparseable date")
		return civil.Date{}, false
	}
	return d, true
}

func parseDateCell(cell, layout string) (civil.Date, error) {
	t, err := time.Parse(layout, strings.TrimSpace(cell))
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t), nil
}

// resolveAmount produces the signed amount for a row according to the
// discovered representation.
func (e *Extractor) resolveAmount(raw *frame.RawFrame, structural *StructuralInfo, row int) (decimal.Decimal, bool) {
	a := structural.Amount
	switch a.Representation {
	case DualColumnDebitCredit:
		return e.resolveDualColumn(raw, a, row)

	case SingleColumnSigned:
		v, err := parseAmount(raw.Cell(row, a.AmountColumn))
		if err != nil {
			e.log.Warn().Int("row", row).Err(err).Msg("dropping row: bad amount")
			return decimal.Decimal{}, false
		}
		return v, true

	case SingleColumnWithType:
		v, err := parseAmount(raw.Cell(row, a.AmountColumn))
		if err != nil {
			e.log.Warn().Int("row", row).Err(err).Msg("dropping row: bad amount")
			return decimal.Decimal{}, false
		}
		kind := strings.TrimSpace(raw.Cell(row, a.TypeColumn))
		switch {
		case a.DebitIdentifier != "" && strings.EqualFold(kind, a.DebitIdentifier):
			return v.Abs().Neg(), true
		case a.CreditIdentifier != "" && strings.EqualFold(kind, a.CreditIdentifier):
			return v.Abs(), true
		default:
			e.log.Warn().Int("row", row).Str("type", kind).Msg("dropping row: unrecognized type indicator")
			return decimal.Decimal{}, false
		}
	}
	e.log.Warn().Int("row", row).Msg("dropping row: unknown amount representation")
	return decimal.Decimal{}, false
}

// resolveDualColumn handles the debit/credit layout. Debits become negative,
// credits positive. A row populating both columns nets them, with a warning,
// since some exports use the pair as adjustment columns.
func (e *Extractor) resolveDualColumn(raw *frame.RawFrame, a AmountInfo, row int) (decimal.Decimal, bool) {
	debitCell := strings.TrimSpace(raw.Cell(row, a.DebitColumn))
	creditCell := strings.TrimSpace(raw.Cell(row, a.CreditColumn))
	if debitCell == "" && creditCell == "" {
		e.log.Warn().Int("row", row).Msg("dropping row: both debit and credit empty")
		return decimal.Decimal{}, false
	}

	var debit, credit decimal.Decimal
	if debitCell != "" {
		v, err := parseAmount(debitCell)
		if err != nil {
			e.log.Warn().Int("row", row).Err(err).Msg("dropping row: bad debit amount")
			return decimal.Decimal{}, false
		}
		debit = v.Abs()
	}
	if creditCell != "" {
		v, err := parseAmount(creditCell)
		if err != nil {
			e.log.Warn().Int("row", row).Err(err).Msg("dropping row: bad credit amount")
			return decimal.Decimal{}, false
		}
		credit = v.Abs()
	}
	if debitCell != "" && creditCell != "" {
		e.log.Warn().Int("row", row).
			Str("debit", debit.String()).
			Str("credit", credit.String()).
			Msg("row populates both debit and credit, netting")
	}
	return credit.Sub(debit), true
}

// description resolves the row description: the mapped column when present
// and non-empty, otherwise a pipe-joined concatenation of the remaining
// textual columns, truncated.
func (e *Extractor) description(raw *frame.RawFrame, mapping *SemanticMapping, textualCols []string, row int) string {
	if mapping.DescriptionColumn != "" {
		if d := strings.TrimSpace(raw.Cell(row, mapping.DescriptionColumn)); d != "" {
			return d
		}
	}
	var parts []string
	for _, c := range textualCols {
		if v := strings.TrimSpace(raw.Cell(row, c)); v != "" {
			parts = append(parts, v)
		}
	}
	return truncateRunes(strings.Join(parts, " | "), maxDescriptionRunes)
}

// textualColumns picks the unconsumed columns that look like text rather
// than numbers, by sampling up to the first 50 rows of each.
func (e *Extractor) textualColumns(raw *frame.RawFrame, structural *StructuralInfo) []string {
	var out []string
	for _, c := range remainingColumns(raw, structural) {
		nonEmpty, numeric := 0, 0
		for i := 0; i < raw.Len() && i < 50; i++ {
			v := strings.TrimSpace(raw.Cell(i, c))
			if v == "" {
				continue
			}
			nonEmpty++
			if _, err := parseAmount(v); err == nil {
				numeric++
			}
		}
		if nonEmpty > 0 && numeric*2 < nonEmpty {
			out = append(out, c)
		}
	}
	return out
}

// parseAmount normalizes a raw amount cell: currency symbols and thousands
// separators are stripped, parenthesized values read as negative.
func parseAmount(cell string) (decimal.Decimal, error) {
	s := strings.TrimSpace(cell)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ',' || r == ' ' || unicode.Is(unicode.Sc, r):
			// thousands separators and currency symbols ($€£¥₹₽ ...)
		default:
			b.WriteRune(r)
		}
	}

	v, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Decimal{}, err
	}
	if negative {
		v = v.Abs().Neg()
	}
	return v, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

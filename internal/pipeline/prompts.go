package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/frame"
)

// buildStructuralPrompt asks the model to identify the date column, its
// layout, and the amount representation from a CSV sample of the statement.
func buildStructuralPrompt(sample *frame.RawFrame) string {
	var b strings.Builder
	b.WriteString("You are a bank statement structure analyzer.\n\n")
	b.WriteString("Below is a CSV sample of a bank statement export. The sample contains\n")
	b.WriteString("the first rows, a few rows from the middle, and the last rows of the file.\n\n")
	b.WriteString("Columns: " + strings.Join(sample.Columns(), ", ") + "\n\n")
	b.WriteString("Sample:\n")
	b.WriteString(sample.CSV())
	b.WriteString("\nTask:\n")
	b.WriteString("1. Identify the column containing the transaction date.\n")
	b.WriteString("2. Express the date format as a Go reference layout built from the\n")
	b.WriteString("   reference time \"Mon Jan 2 15:04:05 2006\". Examples:\n")
	b.WriteString("   \"02/01/2006\" for DD/MM/YYYY, \"2006-01-02\" for ISO dates,\n")
	b.WriteString("   \"Jan 2, 2006\" for textual months.\n")
	b.WriteString("3. Identify how amounts are represented. Exactly one of:\n")
	b.WriteString("   - \"dual_column_debit_credit\": separate debit and credit columns\n")
	b.WriteString("   - \"single_column_signed\": one column with negative debits\n")
	b.WriteString("   - \"single_column_with_type\": one magnitude column plus a type\n")
	b.WriteString("     column whose values mark debit or credit rows\n\n")
	b.WriteString("Output STRICT JSON only (no comments, no trailing text, no Markdown):\n")
	b.WriteString(`{
  "date_info": {"column_name": "...", "layout": "..."},
  "amount_info": {
    "representation": "...",
    "debit_column": "...",
    "credit_column": "...",
    "amount_column": "...",
    "type_column": "...",
    "debit_identifier": "...",
    "credit_identifier": "..."
  }
}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use exact column names from the sample, case-sensitive.\n")
	b.WriteString("- Omit amount_info fields that do not apply to the representation.\n")
	b.WriteString("- For single_column_with_type, debit_identifier and credit_identifier\n")
	b.WriteString("  are the literal cell values marking each kind (e.g. \"DR\", \"CR\").\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// buildSemanticPrompt asks the model which of the remaining columns carries
// the transaction description. Columns already consumed by structural
// analysis are excluded before the call.
func buildSemanticPrompt(sample *frame.RawFrame) string {
	var b strings.Builder
	b.WriteString("You are a bank statement column classifier.\n\n")
	b.WriteString("Below is a CSV sample of the remaining columns of a bank statement,\n")
	b.WriteString("after the date and amount columns were removed.\n\n")
	b.WriteString("Columns: " + strings.Join(sample.Columns(), ", ") + "\n\n")
	b.WriteString("Sample:\n")
	b.WriteString(sample.CSV())
	b.WriteString("\nTask: identify the single column that best describes what each\n")
	b.WriteString("transaction was (merchant, payee, narrative).\n\n")
	b.WriteString("Output STRICT JSON only:\n")
	b.WriteString(`{"description_column": "..."}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use the exact column name, case-sensitive.\n")
	b.WriteString("- If no column clearly qualifies, use an empty string.\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// buildCategorizationPrompt asks the model to label a batch of transaction
// descriptions using only the categories in the hierarchy snapshot.
func buildCategorizationPrompt(hierarchy CategoryHierarchy, descriptions []string) string {
	var b strings.Builder
	b.WriteString("You are a personal finance transaction categorizer.\n\n")
	b.WriteString("Use ONLY the following categories and subcategories:\n\n")
	b.WriteString(hierarchy.PromptJSON())
	b.WriteString("\n\nTransactions to categorize, one per line, numbered:\n")
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}
	b.WriteString("\nOutput STRICT JSON only: an array with EXACTLY ")
	fmt.Fprintf(&b, "%d elements,\n", len(descriptions))
	b.WriteString("one per transaction, in the same order:\n")
	b.WriteString(`[{"category": "...", "subcategory": "..."}, ...]` + "\n\n")
	b.WriteString("CATEGORY ASSIGNMENT RULES:\n")
	b.WriteString("1. Category must be EXACTLY one of the category names shown above (case-sensitive).\n")
	b.WriteString("2. If a category has subcategories listed, choose one of them.\n")
	b.WriteString("3. If a category has no subcategories, use empty string \"\" for subcategory.\n")
	b.WriteString("4. If you are unsure, use category \"" + UncategorizedCategory + "\" with subcategory \"\".\n")
	b.WriteString("5. Never skip, merge or reorder transactions.\n")
	b.WriteString("6. Do NOT wrap the response in code fences. Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// Package prompt turns table metadata, analyzer statistics and raw sample
// rows into the instruction payload sent to the generation backend. The
// directive text is a contract the response parser partially re-enforces:
// the backend must emit a JSON array of findings, or exactly [].
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qupid/dq-suggestions/internal/analyzer"
)

// minSampleRows is the evidence floor: below it the builder mandates an
// empty result instead of asking the backend to speculate.
const minSampleRows = 5

// maxRawRows caps the raw sample embedded in the prompt.
const maxRawRows = 10

// SystemPrompt is the fixed auditor contract sent as the system
// instruction on every generation call.
const SystemPrompt = `You are a data quality auditor reviewing sample data. Your role is to identify specific, observable data quality issues and suggest validation rules.

<MISSION>
Scan every value in the provided sample rows. ONLY report a column if at least one specific value demonstrates a clear issue. Quote the exact row identifier and problematic value.
</MISSION>

<RULES>
1. Base all findings SOLELY on the provided sample data
2. Do not infer problems from column names or types alone
3. If a problem isn't visible in the samples, assume the column is fine
4. Report format inconsistencies ONLY if >10% of non-null values deviate from the dominant pattern
5. Quote exact values and row identifiers for every issue reported
</RULES>

<PROBLEM_TYPES>
Report ONLY these observable issues:

1. FORMAT VIOLATIONS
   ❌ REPORT IF: Email missing @ symbol (e.g., value="test", value="user.domain.com")
   ❌ REPORT IF: Phone has inconsistent format (e.g., some "+XXX", some "0X-XX")
   ❌ REPORT IF: ID/code format inconsistency visible in >10% of values
   ✅ SKIP IF: All values follow expected format

2. INVALID VALUES
   ❌ REPORT IF: Negative age, price, or quantity where illogical
   ❌ REPORT IF: Unrealistic ranges (age>120, price=999999)
   ❌ REPORT IF: Future dates in registration/creation fields
   ✅ SKIP IF: All values within reasonable bounds

3. CONSISTENCY ISSUES
   ❌ REPORT IF: Duplicate IDs visible in sample
   ❌ REPORT IF: Date ordering violations (end_date < start_date)
   ❌ REPORT IF: Contradictions (status='paid' but amount=0)
   ✅ SKIP IF: No duplicates or contradictions found

4. STANDARDIZATION ISSUES
   ❌ REPORT IF: Mixed formats in same column (dates as "2023-01-01" and "01/01/2023")
   ❌ REPORT IF: Mixed cases in categorical fields ("ACTIVE" and "active")
   ❌ REPORT IF: Placeholder values in production ("test", "dummy", "N/A", "xxx")
   ✅ SKIP IF: Formatting is consistent

5. BUSINESS LOGIC VIOLATIONS
   ❌ REPORT IF: Status values outside expected set
   ❌ REPORT IF: Referential integrity issues observable in sample
   ✅ SKIP IF: All values conform to business rules
</PROBLEM_TYPES>

<OUTPUT_FORMAT>
[
  {
    "column": "column_name",
    "issues": [
      "Observed pattern: 8/10 values have '@', 2 values are 'test' (rows: id=944043, id=123)",
      "Problem: Invalid email format prevents communication"
    ],
    "recommendation": "Apply email validation regex: ^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\\.[a-zA-Z]{2,}$ to reject values without @ symbol",
    "severity": "high"
  }
]

Severity definitions:
- high: Could cause business errors (invalid emails block communication, negative prices break billing)
- medium: Improves consistency but not critical (mixed cases, format standardization)
</OUTPUT_FORMAT>

<NEGATIVE_EXAMPLES>
DO NOT OUTPUT:
{
  "column": "name",
  "issues": ["Could potentially have typos"],
  "recommendation": "Add spell check",
  "severity": "low"
}
Reason: No actual typos observed in sample—this is speculation.

DO NOT OUTPUT:
{
  "column": "age",
  "issues": ["Values are numeric"],
  "recommendation": "Validate age range",
  "severity": "medium"
}
Reason: No invalid ages found—column is fine, should be skipped.
</NEGATIVE_EXAMPLES>

<EDGE_CASES>
- If sample has <5 rows: Output [] with note "Insufficient data for analysis (need ≥5 rows)"
- If all columns are fine: Output exactly: []
- If column has 100% nulls and seems optional: SKIP (don't report high null rate)
- If column has 100% nulls and is an ID field: REPORT as critical issue
</EDGE_CASES>

<FINAL_REMINDERS>
✓ Quote exact values and row IDs for every issue
✓ Calculate percentages (X out of Y values)
✓ Provide specific regex, constraints, or enum values
✓ Use chain-of-thought: observe → quantify → decide → output
✗ Don't report "could have" or "might be" issues
✗ Don't suggest validation unless problem is visible
✗ Don't over-report—precision over recall
</FINAL_REMINDERS>`

// TableIdentity names the table under analysis.
type TableIdentity struct {
	SchemaName string
	TableName  string
}

// BuildUserPrompt composes the user instruction for one table. Below the
// evidence floor it returns an instruction mandating an empty result and
// skips statistics and rows entirely.
func BuildUserPrompt(table TableIdentity, columns []analyzer.Column, rows []analyzer.Row, stats map[string]analyzer.ColumnStat) string {
	if len(rows) < minSampleRows {
		return fmt.Sprintf(`<DATA>
TABLE: %s.%s
SAMPLE: %d rows (INSUFFICIENT)
</DATA>

<INSTRUCTION>
Output exactly: []
Note: "Insufficient data for analysis (need ≥5 rows)"
</INSTRUCTION>`, table.SchemaName, table.TableName, len(rows))
	}

	summaries := make([]string, 0, len(columns))
	for _, col := range columns {
		summaries = append(summaries, columnSummary(col, stats[col.Name], len(rows)))
	}

	sampleText := marshalSample(rows)

	sampleWarning := ""
	if len(rows) < 10 {
		sampleWarning = "\n⚠️ CAUTION: Limited samples—only report glaring, obvious issues."
	}

	return fmt.Sprintf(`<DATA>
TABLE: %s.%s
SAMPLE SIZE: %d rows%s

COLUMN SUMMARY (pre-computed insights):
%s

RAW SAMPLE DATA (scan every value):
%s
</DATA>

<TASK>
Think step-by-step:

STEP 1: SCAN EVERY VALUE
For each column, examine every value in the sample data above.

STEP 2: IDENTIFY PATTERNS
- Email columns: Count how many have @ symbol vs missing @
- Phone columns: Note format variations ("+XXX" vs "0X-XX-XX")
- Date columns: Check for future dates, format consistency
- Numeric columns: Check for negative values, unrealistic ranges
- Category columns: List distinct values, check for unexpected ones
- ID columns: Check for duplicates in the sample

STEP 3: QUANTIFY ISSUES
Calculate percentages: "X out of Y values have problem (Z%%)"
Only report if >10%% of non-null values show the issue OR if it's a critical field (ID, email)

STEP 4: DECIDE & OUTPUT
For each column with a real, quantified issue:
- Quote exact problematic values with row IDs
- State the observed pattern with numbers
- Provide specific validation rule (regex, constraint, enum)
- Assign severity (high=business critical, medium=quality improvement)

Skip columns that look fine after analysis.
</TASK>

<FOCUS_AREAS>
1. EMAIL columns (email, e_mail, mail):
   → Does EVERY value contain @? If not, count how many are invalid and quote examples

2. PHONE columns (telephone, phone, mobile):
   → Do all follow same format? If mixed, show examples of each format

3. DATE/TIMESTAMP columns:
   → Any future dates where illogical? Any format inconsistencies?

4. NUMERIC columns (age, price, amount, quantity):
   → Any negative where invalid? Any unrealistic (age>120)?

5. CATEGORY/STATUS columns:
   → List all distinct values. Any unexpected? Suggest enum if appropriate

6. ID/CODE columns:
   → Any duplicates in sample? Any format inconsistencies?

7. TEXT/ADDRESS columns:
   → Any placeholder values ("test", "dummy", "N/A")?

8. CROSS-COLUMN logic:
   → Any date ordering issues? Any contradictions?
</FOCUS_AREAS>

<OUTPUT_INSTRUCTION>
Based on your step-by-step analysis, output JSON array of ONLY columns with real problems.

Include:
- Exact values and row IDs
- Quantified patterns (X out of Y)
- Specific validation rules (regex/constraints)

If no problems found after thorough analysis, output exactly: []
</OUTPUT_INSTRUCTION>`,
		table.SchemaName, table.TableName, len(rows), sampleWarning,
		strings.Join(summaries, "\n"), sampleText)
}

// columnSummary renders one column line combining null rate, distinct
// sketch, numeric range and quality flags as warning markers.
func columnSummary(col analyzer.Column, st analyzer.ColumnStat, sampleSize int) string {
	summary := fmt.Sprintf("  • %s (%s)", col.Name, col.Type)

	var insights []string
	if st.NullCount > 0 {
		insights = append(insights, fmt.Sprintf("%.0f%% null (%d/%d)", st.NullPct, st.NullCount, sampleSize))
	}
	if st.DistinctCount > 0 && st.DistinctCount <= 10 {
		insights = append(insights, fmt.Sprintf("values: %s", strings.Join(st.SampleValues, ", ")))
	} else if st.DistinctCount > 0 {
		insights = append(insights, fmt.Sprintf("%d distinct", st.DistinctCount))
	}
	if st.Min != nil && st.Max != nil {
		insights = append(insights, fmt.Sprintf("range: [%v, %v]", *st.Min, *st.Max))
	}
	if st.HasEmailIssues {
		insights = append(insights, fmt.Sprintf("⚠️ %d invalid emails", st.EmailInvalidCount))
	}
	if st.HasDuplicates {
		insights = append(insights, fmt.Sprintf("⚠️ %d duplicates", st.DuplicateCount))
	}
	if st.HasPlaceholder {
		insights = append(insights, "⚠️ contains placeholder values")
	}

	if len(insights) > 0 {
		summary += fmt.Sprintf("\n    → %s", strings.Join(insights, " | "))
	}
	return summary
}

// marshalSample serializes the first maxRawRows rows as an indented JSON
// dump for the backend to scan value by value.
func marshalSample(rows []analyzer.Row) string {
	if len(rows) > maxRawRows {
		rows = rows[:maxRawRows]
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		// Row maps of JSON-decoded values always marshal; anything else
		// degrades to the fmt rendering rather than failing the build.
		return fmt.Sprintf("%v", rows)
	}
	return string(b)
}

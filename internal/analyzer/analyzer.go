package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Row is a sampled table row: column name to value. A nil value and an
// empty string are both treated as missing.
type Row map[string]interface{}

// Column describes a declared table column. Type may be a placeholder
// such as "unknown" when the catalog does not report one.
type Column struct {
	Name string
	Type string
}

// ColumnStat summarizes one column across a row sample. Computed fresh per
// Analyze call, never persisted.
type ColumnStat struct {
	NullCount     int
	NullPct       float64
	DistinctCount int

	// SampleValues holds the sorted unique values when the column has
	// between 1 and 10 distinct non-missing values (a categorical hint).
	SampleValues []string

	// Min/Max are set only when every non-missing value coerces to a
	// number. A single non-numeric value disqualifies the range.
	Min *float64
	Max *float64

	HasEmailIssues       bool
	EmailInvalidCount    int
	EmailInvalidExamples []string

	HasDuplicates  bool
	DuplicateCount int

	HasPlaceholder bool
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// placeholderValues are known non-meaningful sentinels that indicate
// low-quality data when found in production samples.
var placeholderValues = map[string]struct{}{
	"test": {}, "dummy": {}, "n/a": {}, "na": {},
	"null": {}, "xxx": {}, "none": {}, "invalid": {},
}

// Analyze computes per-column statistics and quality flags over a row
// sample. It is pure and deterministic: no I/O, identical input yields
// identical output. Empty columns or rows yield an empty map.
func Analyze(columns []Column, rows []Row) map[string]ColumnStat {
	stats := make(map[string]ColumnStat)
	if len(rows) == 0 {
		return stats
	}
	sampleSize := len(rows)

	for _, col := range columns {
		if col.Name == "" {
			continue
		}

		var nonNull []string
		nullCount := 0
		for _, row := range rows {
			v, ok := row[col.Name]
			if !ok || v == nil || v == "" {
				nullCount++
				continue
			}
			nonNull = append(nonNull, formatValue(v))
		}

		st := ColumnStat{
			NullCount: nullCount,
			NullPct:   float64(nullCount) / float64(sampleSize) * 100,
		}

		distinct := make(map[string]int, len(nonNull))
		for _, v := range nonNull {
			distinct[v]++
		}
		st.DistinctCount = len(distinct)

		if st.DistinctCount > 0 && st.DistinctCount <= 10 {
			unique := make([]string, 0, len(distinct))
			for v := range distinct {
				unique = append(unique, v)
			}
			sort.Strings(unique)
			if len(unique) > 10 {
				unique = unique[:10]
			}
			st.SampleValues = unique
		}

		if min, max, ok := numericRange(nonNull); ok {
			st.Min = &min
			st.Max = &max
		}

		lowerName := strings.ToLower(col.Name)

		if strings.Contains(lowerName, "email") || strings.Contains(lowerName, "mail") {
			var invalid []string
			for _, v := range nonNull {
				if !emailPattern.MatchString(v) {
					invalid = append(invalid, v)
				}
			}
			if len(invalid) > 0 {
				st.HasEmailIssues = true
				st.EmailInvalidCount = len(invalid)
				if len(invalid) > 3 {
					invalid = invalid[:3]
				}
				st.EmailInvalidExamples = invalid
			}
		}

		if strings.Contains(lowerName, "id") || strings.Contains(lowerName, "key") {
			redundant := 0
			for _, count := range distinct {
				if count > 1 {
					redundant += count - 1
				}
			}
			if redundant > 0 {
				st.HasDuplicates = true
				st.DuplicateCount = redundant
			}
		}

		for _, v := range nonNull {
			if _, ok := placeholderValues[strings.ToLower(v)]; ok {
				st.HasPlaceholder = true
				break
			}
		}

		stats[col.Name] = st
	}

	return stats
}

// numericRange returns the min and max of values when all of them coerce
// to a number. Partial ranges are not reported.
func numericRange(values []string) (min, max float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, 0, false
		}
		if i == 0 || f < min {
			min = f
		}
		if i == 0 || f > max {
			max = f
		}
	}
	return min, max, true
}

// formatValue normalizes an arbitrary sampled value to its string form,
// the same normalization used for distinct counting and heuristics.
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

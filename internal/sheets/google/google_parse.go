package google

import (
	"fmt"
	"strings"
)

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row))
		for j, c := range row {
			vals[j] = c
		}
		out[i] = vals
	}
	return out
}

// rowA1 addresses one full row of a range, e.g. "'Gastos Fixos'!A5:H5".
func rowA1(sheet, first, last string, index int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet), first, index, last, index)
}

// quoteSheet quotes sheet titles that A1 notation cannot take bare.
func quoteSheet(title string) string {
	if title == "" {
		return title
	}
	bare := true
	for _, r := range title {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			bare = false
			break
		}
	}
	if bare {
		return title
	}
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

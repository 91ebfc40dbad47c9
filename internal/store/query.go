package store

import (
	"strings"
)

// buildWhere returns the WHERE clause (without the keyword) and its args for q.
func buildWhere(q PageQuery) (string, []any) {
	clauses := []string{"run_id = ?"}
	args := []any{q.RunID}

	if len(q.Extensions) > 0 {
		placeholders := make([]string, len(q.Extensions))
		for i, ext := range q.Extensions {
			placeholders[i] = "?"
			args = append(args, ext)
		}
		clauses = append(clauses, "extension IN ("+strings.Join(placeholders, ",")+")")
	}

	if q.SubfolderContains != "" {
		// instr is case-sensitive and treats % and _ literally, unlike LIKE.
		clauses = append(clauses, "instr(subfolder, ?) > 0")
		args = append(args, q.SubfolderContains)
	}

	return strings.Join(clauses, " AND "), args
}

// buildOrderBy honors up to MaxSortInstructions valid instructions, ignoring
// unknown columns, and falls back to file_name ascending. file_id is always
// appended as a final tiebreaker so that LIMIT/OFFSET pages are stable.
func buildOrderBy(instructions []SortInstruction) string {
	var parts []string
	for i, inst := range instructions {
		if i >= MaxSortInstructions {
			break
		}
		col, ok := sortableColumns[inst.Column]
		if !ok {
			continue
		}
		dir := "DESC"
		if strings.EqualFold(string(inst.Direction), string(SortAsc)) {
			dir = "ASC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		parts = append(parts, "file_name ASC")
	}
	parts = append(parts, "file_id ASC")
	return "ORDER BY " + strings.Join(parts, ", ")
}

// ParseSortInstruction parses "column" or "column:dir" (dir defaults to asc).
// Unknown columns are returned as-is; FetchPage ignores them.
func ParseSortInstruction(s string) SortInstruction {
	col, dir, _ := strings.Cut(strings.TrimSpace(s), ":")
	inst := SortInstruction{Column: SortColumn(strings.ToLower(col)), Direction: SortAsc}
	if strings.EqualFold(dir, string(SortDesc)) {
		inst.Direction = SortDesc
	}
	return inst
}

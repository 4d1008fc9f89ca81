package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// tenantGuard scans store files for SQL statements against tenant-owned
// tables and ensures each carries a tenant_id filter or column. Exit code
// 0 = ok, 1 = violation, 2 = other error.
func main() {
	root := "internal"
	deny, err := scan(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tenant_guard error: %v\n", err)
		os.Exit(2)
	}
	if len(deny) > 0 {
		for _, v := range deny {
			fmt.Fprintf(os.Stderr, "VIOLATION: %s\n", v)
		}
		os.Exit(1)
	}
	fmt.Println("tenant_guard: OK")
}

// Tables where every row belongs to a tenant. webhook_deliveries,
// domain_events, and operators are keyed by ids that only trusted internal
// paths produce (task payloads, verified token subjects) and are exempt.
var tenantTables = []string{
	"parking_sessions",
	"parking_settings",
	"business_settings",
	"frequent_parkers",
	"parking_validations",
	"webhook_endpoints",
}

var (
	reStmt   = regexp.MustCompile(`(?i)\b(select|update|delete)\b`)
	reTenant = regexp.MustCompile(`(?i)tenant_id`)
)

func scan(dir string) ([]string, error) {
	var violations []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, "store.go") {
			return nil
		}
		bad, err := checkFile(path)
		if err != nil {
			return err
		}
		violations = append(violations, bad...)
		return nil
	})
	return violations, err
}

// checkFile inspects each backtick-quoted SQL string in the file. A statement
// that reads or mutates a tenant table without mentioning tenant_id is a
// violation.
func checkFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var violations []string
	parts := strings.Split(string(data), "`")
	// Odd-indexed parts are inside backticks.
	for i := 1; i < len(parts); i += 2 {
		stmt := parts[i]
		if !reStmt.MatchString(stmt) {
			continue
		}
		table := referencedTenantTable(stmt)
		if table == "" {
			continue
		}
		if !reTenant.MatchString(stmt) {
			violations = append(violations, fmt.Sprintf("%s: %s statement on %s without tenant_id", path, firstWord(stmt), table))
		}
	}
	return violations, nil
}

func referencedTenantTable(stmt string) string {
	lower := strings.ToLower(stmt)
	for _, table := range tenantTables {
		if strings.Contains(lower, table) {
			return table
		}
	}
	return ""
}

func firstWord(stmt string) string {
	fields := strings.Fields(strings.TrimSpace(stmt))
	if len(fields) == 0 {
		return "sql"
	}
	return strings.ToUpper(fields[0])
}

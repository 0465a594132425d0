package relational

import "testing"

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{
			name:    "postgres passes through unchanged",
			dialect: DialectPostgres,
			query:   "SELECT * FROM products WHERE branch_id = $1 AND global_id = $2",
			want:    "SELECT * FROM products WHERE branch_id = $1 AND global_id = $2",
		},
		{
			name:    "sqlite rewrites positional placeholders",
			dialect: DialectSQLite,
			query:   "SELECT * FROM products WHERE branch_id = $1 AND global_id = $2",
			want:    "SELECT * FROM products WHERE branch_id = ? AND global_id = ?",
		},
		{
			name:    "sqlite rewrites multi-digit placeholders",
			dialect: DialectSQLite,
			query:   "INSERT INTO t VALUES ($1, $2, $10, $11)",
			want:    "INSERT INTO t VALUES (?, ?, ?, ?)",
		},
		{
			name:    "sqlite leaves bare dollar signs alone",
			dialect: DialectSQLite,
			query:   "SELECT '$' FROM t",
			want:    "SELECT '$' FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Store{dialect: tt.dialect}
			if got := s.rebind(tt.query); got != tt.want {
				t.Errorf("rebind(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

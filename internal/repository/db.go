package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// executor prefers the transaction handle when one is supplied.
func executor(exec sqlx.ExtContext, db *sqlx.DB) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}

func placeholders(n int) string {
	values := make([]string, n)
	for i := 1; i <= n; i++ {
		values[i-1] = fmt.Sprintf("$%d", i)
	}
	return strings.Join(values, ",")
}

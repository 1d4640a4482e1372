package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

var trailingDigits = regexp.MustCompile(`(\d+)$`)

func formatReference(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

// parseReferenceSeq returns the trailing number of ref, or 0 when there is none.
func parseReferenceSeq(ref string) int64 {
	m := trailingDigits.FindStringSubmatch(ref)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// nextReference reserves the next number for table inside tx. The counter row is
// seeded from (and never falls behind) the reference of the highest-id row.
func nextReference(ctx context.Context, tx *Tx, table, prefix string) (string, error) {
	var last string
	err := tx.QueryRowContext(ctx, `SELECT reference FROM `+table+` ORDER BY id DESC LIMIT 1`).Scan(&last)
	if err != nil {
		if err = scanErr(err); err != nil && !isNotFound(err) {
			return "", fmt.Errorf("last reference: %w", err)
		}
	}
	floor := parseReferenceSeq(last)
	greatest := "MAX"
	if tx.dialect == DialectPostgres {
		greatest = "GREATEST"
	}
	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ref_counters(scope, seq) VALUES(?, ?)
		ON CONFLICT (scope) DO UPDATE SET seq = `+greatest+`(ref_counters.seq, excluded.seq - 1) + 1
		RETURNING seq`, table, floor+1).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("reserve reference: %w", scanErr(err))
	}
	return formatReference(prefix, seq), nil
}

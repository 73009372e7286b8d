package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"db-ferry/internal/dberr"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want dberr.Kind
	}{
		{"nil", nil, dberr.KindOther},
		{"plain", errors.New("boom"), dberr.KindOther},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, dberr.KindDuplicate},
		{"mysql wrapped not null", fmt.Errorf("insert row 3: %w", &mysql.MySQLError{Number: 1048}), dberr.KindNotNull},
		{"mysql unknown code", &mysql.MySQLError{Number: 1213}, dberr.KindOther},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, dberr.KindForeignKey},
		{"pgx bad value", &pgconn.PgError{Code: "22P02"}, dberr.KindData},
		{"pq duplicate", &pq.Error{Code: "23505"}, dberr.KindDuplicate},
		{"pq not null", &pq.Error{Code: "23502"}, dberr.KindNotNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dberr.Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

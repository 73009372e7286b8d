// Package dberr classifies driver errors from the supported SQL stores.
package dberr

import (
	"errors"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/sijms/go-ora/v2/network"
)

// Kind is a coarse, driver-independent error category.
type Kind string

const (
	KindDuplicate  Kind = "duplicate key"
	KindNotNull    Kind = "not null violation"
	KindForeignKey Kind = "foreign key violation"
	KindData       Kind = "invalid value"
	KindSyntax     Kind = "syntax error"
	KindOther      Kind = "error"
)

var (
	mysqlKinds = map[uint16]Kind{
		1062: KindDuplicate,
		1048: KindNotNull, 1364: KindNotNull,
		1451: KindForeignKey, 1452: KindForeignKey,
		1265: KindData, 1292: KindData, 1366: KindData, 1406: KindData, 3140: KindData,
		1064: KindSyntax,
	}
	mssqlKinds = map[int32]Kind{
		2627: KindDuplicate, 2601: KindDuplicate,
		515: KindNotNull,
		547: KindForeignKey,
		245: KindData, 8114: KindData, 8152: KindData, 2628: KindData,
		102: KindSyntax, 156: KindSyntax,
	}
	oracleKinds = map[int]Kind{
		1:    KindDuplicate,
		1400: KindNotNull,
		2291: KindForeignKey, 2292: KindForeignKey,
		1722: KindData, 1861: KindData, 12899: KindData,
		900: KindSyntax, 933: KindSyntax,
	}
)

// Classify maps err onto a Kind. Unknown drivers and nil yield KindOther.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return lookup(mysqlKinds, myErr.Number)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlState(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlState(string(pqErr.Code))
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return lookup(mssqlKinds, msErr.Number)
	}
	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return lookup(oracleKinds, oraErr.ErrCode)
	}
	return KindOther
}

func lookup[K comparable](kinds map[K]Kind, code K) Kind {
	if k, ok := kinds[code]; ok {
		return k
	}
	return KindOther
}

// sqlState handles the Postgres SQLSTATE classes.
func sqlState(code string) Kind {
	switch {
	case code == "23505":
		return KindDuplicate
	case code == "23502":
		return KindNotNull
	case code == "23503":
		return KindForeignKey
	case len(code) == 5 && code[:2] == "22":
		return KindData
	case code == "42601":
		return KindSyntax
	}
	return KindOther
}

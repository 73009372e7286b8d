package server_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"db-ferry/internal/dialect"
	"db-ferry/internal/server"
)

func TestSQLProbe(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT VERSION\(\)`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("8.0.36"))
	mock.ExpectQuery("information_schema.TABLES").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("customers").AddRow("orders"))

	st := server.SQLProbe("target", db, dialect.GetDialect("mysql"), "shop")(context.Background())
	if !st.OK || st.Version != "8.0.36" || st.Tables != 2 || st.Store != "target" {
		t.Errorf("unexpected status: %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLProbe_Down(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT VERSION\(\)`).WillReturnError(errors.New("connection reset"))

	st := server.SQLProbe("mirror", db, dialect.GetDialect("mysql"), "shop")(context.Background())
	if st.OK || st.Error != "connection reset" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestSQLProbe_NotConfigured(t *testing.T) {
	st := server.SQLProbe("mirror", nil, dialect.GetDialect("mysql"), "")(context.Background())
	if st.OK || st.Error != "not configured" {
		t.Errorf("unexpected status: %+v", st)
	}
}

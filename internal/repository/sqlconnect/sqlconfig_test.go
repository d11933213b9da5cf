package sqlconnect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(schema).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureSchemaWrapsError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectExec(schema).WillReturnError(boom)
	err = EnsureSchema(context.Background(), db)
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped boom, got %v", err)
	}
}

func TestSchemaDeclaresConstraints(t *testing.T) {
	for _, c := range []string{"users_email_key", "books_seller_id_fkey", "books_mode_check", "books_price_check"} {
		if !strings.Contains(schema, c) {
			t.Errorf("schema missing constraint %s", c)
		}
	}
}

func TestConnectDBRequiresDSN(t *testing.T) {
	if _, err := ConnectDB(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

package extract

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockWorker(t *testing.T) (*Worker, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	orm, err := gorm.Open(postgres.New(postgres.Config{Conn: db, PreferSimpleProtocol: true}), &gorm.Config{})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return &Worker{orm: orm, logger: zerolog.Nop()}, mock
}

var applyMeta = Metadata{
	Title:    "Recovered Title",
	Abstract: "Recovered abstract.",
	Keywords: []string{"alpha", "beta"},
	Authors:  []Author{{Name: "Ana M. Costa", Email: "ana@example.org"}},
}

func TestApplySkipsMissingSubmission(t *testing.T) {
	w, mock := newMockWorker(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "submissions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	if err := w.applyToDraft(context.Background(), uuid.New(), applyMeta); err != nil {
		t.Fatalf("applyToDraft: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplySkipsNonDraft(t *testing.T) {
	w, mock := newMockWorker(t)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "title", "abstract", "keywords", "status"}).
		AddRow(id.String(), "", "", []byte(`[]`), "submitted")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "submissions"`).WillReturnRows(rows)
	mock.ExpectCommit()

	if err := w.applyToDraft(context.Background(), id, applyMeta); err != nil {
		t.Fatalf("applyToDraft: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplyFillsEmptyFields(t *testing.T) {
	w, mock := newMockWorker(t)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "title", "abstract", "keywords", "status"}).
		AddRow(id.String(), "", "", []byte(`[]`), "draft")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "submissions"`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "submissions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "authorships"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	if err := w.applyToDraft(context.Background(), id, applyMeta); err != nil {
		t.Fatalf("applyToDraft: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// A draft the author already filled in is left exactly as it is: no
// UPDATE may reach the database.
func TestApplyLeavesFilledFieldsAlone(t *testing.T) {
	w, mock := newMockWorker(t)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "title", "abstract", "keywords", "status"}).
		AddRow(id.String(), "My Draft", "Written by hand.", []byte(`["gamma"]`), "draft")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "submissions"`).WillReturnRows(rows)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "authorships"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	if err := w.applyToDraft(context.Background(), id, applyMeta); err != nil {
		t.Fatalf("applyToDraft: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHasKeywords(t *testing.T) {
	tests := []struct {
		name string
		raw  datatypes.JSON
		want bool
	}{
		{name: "nil", raw: nil, want: false},
		{name: "empty array", raw: datatypes.JSON(`[]`), want: false},
		{name: "filled", raw: datatypes.JSON(`["alpha"]`), want: true},
		{name: "unreadable payload counts as filled", raw: datatypes.JSON(`{"not":"a list"}`), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasKeywords(tt.raw); got != tt.want {
				t.Errorf("hasKeywords(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

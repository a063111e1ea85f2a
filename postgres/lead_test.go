package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	almalead "github.com/phbpx/almalead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leadRowColumns = []string{
	"id", "first_name", "last_name", "email", "resume_key", "state", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testLead() almalead.Lead {
	now := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	return almalead.Lead{
		ID:        "5f1c3a52-6f8e-4a53-9d8b-5c4bb0a1a001",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
		ResumeKey: "resumes/2025/11/01/abc.pdf",
		State:     almalead.StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestLeadRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	lead := testLead()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(lead.ID, "John", "Doe", "john@example.com", lead.ResumeKey, "PENDING", lead.CreatedAt, lead.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewLeadRepository(db).Create(context.Background(), lead)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_CreateRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := NewLeadRepository(db).Create(context.Background(), testLead())

	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	lead := testLead()

	mock.ExpectQuery(`(?s)SELECT .+ FROM leads\s+WHERE id=\$1`).
		WithArgs(lead.ID).
		WillReturnRows(sqlmock.NewRows(leadRowColumns).
			AddRow(lead.ID, lead.FirstName, lead.LastName, lead.Email, lead.ResumeKey, "PENDING", lead.CreatedAt, lead.UpdatedAt))

	got, err := NewLeadRepository(db).GetByID(context.Background(), lead.ID)

	require.NoError(t, err)
	assert.Equal(t, lead, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM leads`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewLeadRepository(db).GetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, almalead.ErrLeadNotFound)
}

func TestLeadRepository_ListWithStateFilter(t *testing.T) {
	db, mock := newMock(t)
	lead := testLead()
	state := almalead.StatePending

	mock.ExpectQuery(`SELECT count\(\*\) FROM leads WHERE state=\$1`).
		WithArgs("PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`(?s)SELECT .+ FROM leads\s+WHERE state=\$1\s+ORDER BY created_at DESC\s+OFFSET \$2 LIMIT \$3`).
		WithArgs("PENDING", 0, 100).
		WillReturnRows(sqlmock.NewRows(leadRowColumns).
			AddRow(lead.ID, lead.FirstName, lead.LastName, lead.Email, lead.ResumeKey, "PENDING", lead.CreatedAt, lead.UpdatedAt).
			AddRow("id-2", "Jane", "Smith", "jane@example.com", "k2", "PENDING", lead.CreatedAt, lead.UpdatedAt))

	leads, total, err := NewLeadRepository(db).List(context.Background(), almalead.ListFilter{Limit: 100, State: &state})

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, leads, 2)
	assert.Equal(t, "Jane", leads[1].FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_ListWithoutFilter(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM leads`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`ORDER BY created_at DESC\s+OFFSET \$1 LIMIT \$2`).
		WithArgs(5, 10).
		WillReturnRows(sqlmock.NewRows(leadRowColumns))

	leads, total, err := NewLeadRepository(db).List(context.Background(), almalead.ListFilter{Skip: 5, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.NotNil(t, leads)
	assert.Empty(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_UpdateState(t *testing.T) {
	db, mock := newMock(t)
	lead := testLead()
	updatedAt := lead.CreatedAt.Add(time.Hour)

	mock.ExpectQuery(`UPDATE leads\s+SET state=\$2, updated_at=\$3\s+WHERE id=\$1\s+RETURNING`).
		WithArgs(lead.ID, "REACHED_OUT", updatedAt).
		WillReturnRows(sqlmock.NewRows(leadRowColumns).
			AddRow(lead.ID, lead.FirstName, lead.LastName, lead.Email, lead.ResumeKey, "REACHED_OUT", lead.CreatedAt, updatedAt))

	got, err := NewLeadRepository(db).UpdateState(context.Background(), lead.ID, almalead.StateReachedOut, updatedAt)

	require.NoError(t, err)
	assert.Equal(t, almalead.StateReachedOut, got.State)
	assert.Equal(t, updatedAt, got.UpdatedAt)
	assert.Equal(t, lead.CreatedAt, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_UpdateStateNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`UPDATE leads`).WillReturnError(sql.ErrNoRows)

	_, err := NewLeadRepository(db).UpdateState(context.Background(), "missing", almalead.StateReachedOut, time.Now())

	assert.ErrorIs(t, err, almalead.ErrLeadNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: uniqueViolation}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

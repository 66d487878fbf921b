package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"grant-engine/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, logger.NewTestLogger(t)), mock
}

func TestSave_Upserts(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectExec("INSERT INTO analysis_results").
		WithArgs("analyze_grant_requirements", "fp-1", "grant-42", []byte(`{"ok":true}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Save(context.Background(), "analyze_grant_requirements", "fp-1", "grant-42", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_WrapsDriverError(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectExec("INSERT INTO analysis_results").
		WillReturnError(fmt.Errorf("connection reset"))

	err := s.Save(context.Background(), "check_eligibility", "fp-2", "", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_WRITE_FAILED")
}

func TestLoad_ReturnsStoredResult(t *testing.T) {
	s, mock := setupStore(t)

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT result, created_at FROM analysis_results").
		WithArgs("validate_compliance", "fp-3").
		WillReturnRows(sqlmock.NewRows([]string{"result", "created_at"}).
			AddRow([]byte(`{"compliant":false}`), createdAt))

	data, at, err := s.Load(context.Background(), "validate_compliance", "fp-3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"compliant":false}`, string(data))
	assert.Equal(t, createdAt, at)
}

func TestLoad_MissingIsNilNotError(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery("SELECT result, created_at FROM analysis_results").
		WithArgs("validate_compliance", "fp-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"result", "created_at"}))

	data, _, err := s.Load(context.Background(), "validate_compliance", "fp-unknown")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestLoadLatestForGrant(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery("SELECT result FROM analysis_results").
		WithArgs("analyze_grant_requirements", "grant-42").
		WillReturnRows(sqlmock.NewRows([]string{"result"}).
			AddRow([]byte(`{"grantId":"grant-42"}`)))

	data, err := s.LoadLatestForGrant(context.Background(), "analyze_grant_requirements", "grant-42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"grantId":"grant-42"}`, string(data))
}

func TestLoadLatestForGrant_NeverAnalyzed(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery("SELECT result FROM analysis_results").
		WithArgs("analyze_grant_requirements", "grant-unseen").
		WillReturnRows(sqlmock.NewRows([]string{"result"}))

	data, err := s.LoadLatestForGrant(context.Background(), "analyze_grant_requirements", "grant-unseen")
	require.NoError(t, err)
	assert.Nil(t, data)
}

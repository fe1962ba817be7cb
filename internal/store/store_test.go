package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, NewWithPool(mock).Ping(context.Background()))

	mock.ExpectExec(`SELECT 1`).WillReturnError(fmt.Errorf("connection refused"))
	err = NewWithPool(mock).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: ping")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSchools(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	name := "Школа №1"
	lat, lon := 51.53, 46.03
	rating := 4.7
	rows := pgxmock.NewRows([]string{
		"school_id", "name_2gis", "name_ym", "school_address", "latitude", "longitude",
		"year_built", "capacity", "rating_2gis", "rating_yandex", "link_yandex", "link_2gis", "reviews_count",
	}).
		AddRow(1, &name, nil, nil, &lat, &lon, nil, nil, &rating, nil, nil, nil, int64(12)).
		AddRow(2, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, int64(0))
	mock.ExpectQuery(`FROM sa\.get_schools\(\)`).WillReturnRows(rows)

	got, err := NewWithPool(mock).ListSchools(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].SchoolID)
	assert.Equal(t, "Школа №1", *got[0].Name2GIS)
	assert.Equal(t, 4.7, *got[0].Rating2GIS)
	assert.Equal(t, int64(12), got[0].ReviewsCount)
	assert.Nil(t, got[1].Name2GIS)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSchools_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`get_schools`).WillReturnRows(pgxmock.NewRows([]string{"school_id"}))

	got, err := NewWithPool(mock).ListSchools(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSchoolReviews(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	payload := []byte(`[{"review_id":1,"review_text":"ok"}]`)
	mock.ExpectQuery(`SELECT sa\.get_school_reviews_json\(\$1, \$2, \$3\)`).
		WithArgs(5, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"get_school_reviews_json"}).AddRow(payload))

	got, err := NewWithPool(mock).SchoolReviews(context.Background(), 5, start, end)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolReviews_NullIsEmptyArray(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`get_school_reviews_json`).
		WillReturnRows(pgxmock.NewRows([]string{"get_school_reviews_json"}).AddRow(nil))

	got, err := NewWithPool(mock).SchoolReviews(context.Background(), 9, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestSchoolReviews_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`get_school_reviews_json`).WillReturnError(fmt.Errorf("boom"))

	_, err = NewWithPool(mock).SchoolReviews(context.Background(), 9, time.Time{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reviews of school 9")
}

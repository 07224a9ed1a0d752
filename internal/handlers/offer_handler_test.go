package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campaignwala/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferHandler_ListByCategory(t *testing.T) {
	f := newAPIFixture(t, nil, nil)

	f.db.ExpectQuery("SELECT COUNT\\(\\*\\) FROM offers WHERE category = \\$1 AND is_approved = \\$2").
		WithArgs("Banking", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.db.ExpectQuery("SELECT (.+) FROM offers WHERE category = \\$1 AND is_approved = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("Banking", true, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// the path segment wins over a category query parameter
	code, resp := f.do(t, http.MethodGet, "/api/offers/category/Banking?approved=true&category=Loans", nil)
	require.Equal(t, http.StatusOK, code)

	var page struct {
		Items      []map[string]any    `json:"items"`
		Pagination services.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Pagination.Total)
	f.verify(t)
}

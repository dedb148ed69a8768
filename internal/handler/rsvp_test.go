package handler_test

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wedding-rsvp/internal/handler"
	"github.com/sakif/wedding-rsvp/internal/service"
)

// =============================================================================
// GUEST RSVP TESTS
// =============================================================================

func TestRSVPHandler_SubmitAndEdit(t *testing.T) {
	env := newTestEnv(t)
	s := env.signUp(t, "guest@example.com", "Lerato Mokoena")
	h := handler.NewRSVPHandler(env.rsvps, env.logger)

	// Nothing yet.
	rr := httptest.NewRecorder()
	h.HandleGetMine(rr, jsonRequest(http.MethodGet, "/api/rsvp", nil, s))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "RSVP not found", decodeError(t, rr).Message)

	// Submit with a plus-one and an on-behalf guest.
	rr = httptest.NewRecorder()
	h.HandleSubmit(rr, jsonRequest(http.MethodPost, "/api/rsvp", map[string]any{
		"fullName":            " Lerato Mokoena ",
		"email":               "guest@example.com",
		"attending":           true,
		"dietaryRequirements": "vegetarian",
		"hasPlusOne":          true,
		"plusOne":             map[string]string{"name": "Sipho", "dietary": ""},
		"hasChildren":         false,
		"children":            []map[string]any{{"name": "Ignored", "age": 4}},
		"onBehalf":            []map[string]any{{"fullName": "Gogo Mokoena", "attending": true}},
	}, s))
	require.Equal(t, http.StatusCreated, rr.Code)

	var sub service.Submission
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sub))
	require.NotNil(t, sub.RSVP)
	assert.Equal(t, "Lerato Mokoena", sub.RSVP.FullName)
	assert.Empty(t, sub.RSVP.Children, "children only count with hasChildren")
	require.NotNil(t, sub.RSVP.PlusOne)
	assert.Equal(t, "Sipho", sub.RSVP.PlusOne.Name)
	require.Len(t, sub.OnBehalf, 1)
	assert.Nil(t, sub.OnBehalf[0].UserID)
	assert.Equal(t, s.UserID, sub.OnBehalf[0].SubmittedBy)
	assert.NotEmpty(t, sub.NotificationID)

	// Edit: decline and drop the plus-one. Name is not editable.
	rr = httptest.NewRecorder()
	h.HandleUpdateMine(rr, jsonRequest(http.MethodPatch, "/api/rsvp", map[string]any{
		"attending":  false,
		"hasPlusOne": false,
		"fullName":   "Someone Else",
	}, s))
	require.Equal(t, http.StatusOK, rr.Code)

	updated := decodeRSVP(t, rr)
	assert.False(t, updated.Attending)
	assert.Nil(t, updated.PlusOne)
	assert.Equal(t, "Lerato Mokoena", updated.FullName)
	assert.Equal(t, "vegetarian", updated.Dietary)

	rr = httptest.NewRecorder()
	h.HandleGetMine(rr, jsonRequest(http.MethodGet, "/api/rsvp", nil, s))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, sub.RSVP.ID, decodeRSVP(t, rr).ID)
}

func TestRSVPHandler_ChildlessRecordsListChildrenAsArray(t *testing.T) {
	env := newTestEnv(t)
	s := env.signUp(t, "guest@example.com", "Guest")
	h := handler.NewRSVPHandler(env.rsvps, env.logger)

	rr := httptest.NewRecorder()
	h.HandleSubmit(rr, jsonRequest(http.MethodPost, "/api/rsvp", map[string]any{
		"fullName":  "Guest",
		"email":     "guest@example.com",
		"attending": true,
		"onBehalf":  []map[string]any{{"fullName": "Gogo"}},
	}, s))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"children":null`)

	rr = httptest.NewRecorder()
	h.HandleGetMine(rr, jsonRequest(http.MethodGet, "/api/rsvp", nil, s))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"children":[]`)

	// The dashboard lists the own record and the on-behalf one.
	router := adminRouter(handler.NewAdminHandler(env.dashboard, env.rsvps, env.accounts, env.logger))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/rsvps", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, strings.Count(rr.Body.String(), `"children":[]`))
	assert.NotContains(t, rr.Body.String(), `"children":null`)
}

func TestRSVPHandler_Validation(t *testing.T) {
	env := newTestEnv(t)
	s := env.signUp(t, "guest@example.com", "Guest")
	h := handler.NewRSVPHandler(env.rsvps, env.logger)

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"missing name", map[string]any{"email": "guest@example.com"}, "fullName"},
		{"missing email", map[string]any{"fullName": "Guest"}, "email"},
		{
			"nameless on-behalf guest",
			map[string]any{"fullName": "Guest", "email": "g@example.com", "onBehalf": []map[string]any{{"fullName": "  "}}},
			"onBehalf[0].fullName",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandleSubmit(rr, jsonRequest(http.MethodPost, "/api/rsvp", tt.body, s))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantField, decodeError(t, rr).Field)
		})
	}

	// Nothing was written by the failed attempts.
	rr := httptest.NewRecorder()
	h.HandleGetMine(rr, jsonRequest(http.MethodGet, "/api/rsvp", nil, s))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRSVPHandler_SubmitOnBehalf(t *testing.T) {
	env := newTestEnv(t)
	s := env.signUp(t, "guest@example.com", "Guest")
	h := handler.NewRSVPHandler(env.rsvps, env.logger)

	rr := httptest.NewRecorder()
	h.HandleSubmitOnBehalf(rr, jsonRequest(http.MethodPost, "/api/rsvp/on-behalf", map[string]any{
		"onBehalf": []map[string]any{
			{"fullName": "Aunt Zodwa", "attending": true},
			{"fullName": "Uncle Bheki", "email": "bheki@example.com", "attending": false},
		},
	}, s))
	require.Equal(t, http.StatusCreated, rr.Code)

	var sub service.Submission
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sub))
	assert.Nil(t, sub.RSVP)
	assert.Len(t, sub.OnBehalf, 2)

	rr = httptest.NewRecorder()
	h.HandleSubmitOnBehalf(rr, jsonRequest(http.MethodPost, "/api/rsvp/on-behalf", map[string]any{"onBehalf": []any{}}, s))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

// adminRouter mounts the admin handler so chi URL params resolve.
func adminRouter(h *handler.AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/admin/rsvps", h.HandleList)
	r.Get("/api/admin/rsvps/export.csv", h.HandleExport)
	r.Patch("/api/admin/rsvps/{id}", h.HandleUpdate)
	r.Delete("/api/admin/rsvps/{id}", h.HandleDelete)
	r.Put("/api/admin/users/{id}/superuser", h.HandleSetSuperuser)
	return r
}

func seedRSVPs(t *testing.T, env *testEnv) (attendingID, decliningID string) {
	t.Helper()
	rh := handler.NewRSVPHandler(env.rsvps, env.logger)

	for _, g := range []struct {
		email, name string
		attending   bool
	}{
		{"zanele@example.com", "Zanele Dube", true},
		{"andre@example.com", "Andre Botha", false},
	} {
		s := env.signUp(t, g.email, g.name)
		rr := httptest.NewRecorder()
		rh.HandleSubmit(rr, jsonRequest(http.MethodPost, "/api/rsvp", map[string]any{
			"fullName": g.name, "email": g.email, "attending": g.attending,
		}, s))
		require.Equal(t, http.StatusCreated, rr.Code)

		var sub service.Submission
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&sub))
		if g.attending {
			attendingID = sub.RSVP.ID
		} else {
			decliningID = sub.RSVP.ID
		}
	}
	return attendingID, decliningID
}

func TestAdminHandler_List(t *testing.T) {
	env := newTestEnv(t)
	seedRSVPs(t, env)
	router := adminRouter(handler.NewAdminHandler(env.dashboard, env.rsvps, env.accounts, env.logger))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/rsvps?filter=attending&q=ZANELE", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var view service.DashboardView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
	assert.Equal(t, service.Summary{Total: 2, Attending: 1, NotAttending: 1}, view.Summary)
	require.Len(t, view.RSVPs, 1)
	assert.Equal(t, "Zanele Dube", view.RSVPs[0].FullName)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/rsvps?sort=shoe-size", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "sort", decodeError(t, rr).Field)
}

func TestAdminHandler_Export(t *testing.T) {
	env := newTestEnv(t)
	seedRSVPs(t, env)
	router := adminRouter(handler.NewAdminHandler(env.dashboard, env.rsvps, env.accounts, env.logger))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/rsvps/export.csv?sort=name", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "attachment; filename=rsvp_export.csv", rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")

	rows, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Email", "Attending", "Dietary", "Song Requests", "Created At"}, rows[0])
	assert.Equal(t, "Andre Botha", rows[1][0])
	assert.Equal(t, "No", rows[1][2])
	assert.Equal(t, "Yes", rows[2][2])
}

func TestAdminHandler_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	attendingID, decliningID := seedRSVPs(t, env)
	router := adminRouter(handler.NewAdminHandler(env.dashboard, env.rsvps, env.accounts, env.logger))

	// Patch someone else's record.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, jsonRequest(http.MethodPatch, "/api/admin/rsvps/"+decliningID, map[string]any{"attending": true}, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeRSVP(t, rr).Attending)

	// Delete needs confirmation.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/rsvps/"+attendingID, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "confirm", decodeError(t, rr).Field)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/rsvps/"+attendingID+"?confirm=true", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/rsvps/"+attendingID+"?confirm=true", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminHandler_SetSuperuser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "admin@wedding.test", "Admin")
	guest := env.signUp(t, "guest@example.com", "Guest")
	router := adminRouter(handler.NewAdminHandler(env.dashboard, env.rsvps, env.accounts, env.logger))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, jsonRequest(http.MethodPut, "/api/admin/users/"+guest.UserID+"/superuser",
		map[string]bool{"isSuperuser": true}, admin))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, jsonRequest(http.MethodPut, "/api/admin/users/"+admin.UserID+"/superuser",
		map[string]bool{"isSuperuser": false}, admin))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, jsonRequest(http.MethodPut, "/api/admin/users/missing/superuser",
		map[string]bool{"isSuperuser": true}, admin))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/devmorchid/secureboard/internal/models"
)

func TestProjectCreateRoundTrip(t *testing.T) {
	env := setupHandlers(t)
	manager := seedUser(t, env.db, "manager", models.RoleManager)
	r := env.router(manager)

	w := doJSON(t, r, http.MethodPost, "/api/projects", map[string]interface{}{
		"title":      "Website Redesign",
		"start_date": "2024-01-01",
		"end_date":   "2024-02-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d, want 201: %s", w.Code, w.Body.String())
	}

	var created models.Project
	decodeBody(t, w, &created)
	if created.Title != "Website Redesign" {
		t.Errorf("title = %q", created.Title)
	}
	if created.Status != models.ProjectStatusDraft {
		t.Errorf("status = %q, want default draft", created.Status)
	}
	if created.Owner == nil || created.Owner.ID != manager.ID {
		t.Errorf("owner not populated on create response")
	}

	w = doJSON(t, r, http.MethodGet, "/api/projects/"+created.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("show: got %d: %s", w.Code, w.Body.String())
	}
	var fetched models.Project
	decodeBody(t, w, &fetched)
	if fetched.StartDate == nil || fetched.StartDate.String() != "2024-01-01" {
		t.Errorf("start_date did not survive the round trip: %v", fetched.StartDate)
	}
	if fetched.EndDate == nil || fetched.EndDate.String() != "2024-02-01" {
		t.Errorf("end_date did not survive the round trip: %v", fetched.EndDate)
	}
}

func TestProjectCreateRejectsInvertedDates(t *testing.T) {
	env := setupHandlers(t)
	manager := seedUser(t, env.db, "manager", models.RoleManager)

	w := doJSON(t, env.router(manager), http.MethodPost, "/api/projects", map[string]interface{}{
		"title":      "Backwards",
		"start_date": "2024-02-01",
		"end_date":   "2024-01-01",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want 422: %s", w.Code, w.Body.String())
	}
}

func TestProjectCreateForbiddenForPlainUser(t *testing.T) {
	env := setupHandlers(t)
	user := seedUser(t, env.db, "alice", models.RoleUser)

	w := doJSON(t, env.router(user), http.MethodPost, "/api/projects", map[string]interface{}{
		"title": "Side Project",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403: %s", w.Code, w.Body.String())
	}
}

func TestProjectIndexPaginationMeta(t *testing.T) {
	env := setupHandlers(t)
	manager := seedUser(t, env.db, "manager", models.RoleManager)
	r := env.router(manager)

	for i := 0; i < 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/projects", map[string]interface{}{
			"title": fmt.Sprintf("Project %d", i),
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("seed project %d: %d", i, w.Code)
		}
	}

	w := doJSON(t, r, http.MethodGet, "/api/projects?per_page=2&page=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("index: got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data []models.Project `json:"data"`
		Meta struct {
			CurrentPage int   `json:"current_page"`
			PerPage     int   `json:"per_page"`
			Total       int64 `json:"total"`
			LastPage    int   `json:"last_page"`
		} `json:"meta"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Data) != 1 {
		t.Errorf("page 2 rows = %d, want 1", len(resp.Data))
	}
	if resp.Meta.Total != 3 || resp.Meta.LastPage != 2 || resp.Meta.CurrentPage != 2 {
		t.Errorf("meta = %+v", resp.Meta)
	}
}

func TestProjectShowUnknownID(t *testing.T) {
	env := setupHandlers(t)
	manager := seedUser(t, env.db, "manager", models.RoleManager)
	r := env.router(manager)

	w := doJSON(t, r, http.MethodGet, "/api/projects/not-a-uuid", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("malformed id: got %d, want 404", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/projects/6f1c2e6a-0000-4000-8000-000000000000", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing row: got %d, want 404", w.Code)
	}
}

package main

import (
	"encoding/json"
	"errors"
	"net/http"
)

func (app *application) getProjectsHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	projects, err := app.storage.getProjects(u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if projects == nil {
		projects = []*project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (app *application) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkCond(input.Name != "", "name", "must be provided")
	v.checkCond(len(input.Name) <= 100, "name", "must be atmost 100 characters")
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusBadRequest)
		return
	}

	p := &project{
		Name:        input.Name,
		Description: input.Description,
		OwnerID:     u.ID,
	}
	err = app.storage.insertProject(p)
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, errors.New("a project with that name already exists"), http.StatusBadRequest)
			return
		}
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"project": p})
}

func (app *application) getProjectHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	id, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	p, err := app.storage.getAccessibleProject(id, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if p == nil {
		notFound(w)
		return
	}
	members, err := app.storage.getProjectMembers(p.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	tasks, err := app.storage.getProjectTasks(p.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	responses := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, newTaskResponse(t))
	}
	if members == nil {
		members = []*projectMember{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project": p,
		"members": members,
		"tasks":   responses,
	})
}

func (app *application) addProjectMemberHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	id, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	p, err := app.storage.getAccessibleProject(id, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	// only the owner manages membership; members just see the project
	if p == nil || p.OwnerID != u.ID {
		notFound(w)
		return
	}

	var input struct {
		UserID int `json:"user_id"`
	}
	err = json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	member, err := app.storage.getUserByID(input.UserID)
	if err != nil {
		serverError(w, err)
		return
	}
	if member == nil {
		notFound(w)
		return
	}
	err = app.storage.addProjectMember(p.ID, member.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (app *application) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	id, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	deleted, err := app.storage.deleteProject(id, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if !deleted {
		notFound(w)
		return
	}
	app.invalidateBoard(u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

func readIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid id parameter")
	}
	return id, nil
}

// parseTaskFilter reads the shared filter surface of the list and report
// endpoints. Unknown sort keys fall back to the default inside
// normalizeOrderBy; bad dates are a caller error.
func parseTaskFilter(values url.Values, allowedOrder []string) (taskFilter, error) {
	f := taskFilter{
		query:   values.Get("q"),
		status:  values.Get("status"),
		orderBy: normalizeOrderBy(values.Get("order_by"), allowedOrder),
		page:    1,
	}
	if s := values.Get("start_date"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, errors.New("start_date must be a valid date in YYYY-MM-DD format")
		}
		f.startDate = &d
	}
	if s := values.Get("end_date"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, errors.New("end_date must be a valid date in YYYY-MM-DD format")
		}
		f.endDate = &d
	}
	if s := values.Get("project"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return f, errors.New("project must be an integer id")
		}
		f.projectID = id
	}
	if s := values.Get("page"); s != "" {
		if page, err := strconv.Atoi(s); err == nil {
			f.page = page
		}
	}
	return f, nil
}

func totalPages(count int) int {
	n := (count + pageSize - 1) / pageSize
	if n < 1 {
		n = 1
	}
	return n
}

func (app *application) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	var input struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Status          string   `json:"status"`
		ProjectID       int      `json:"project_id"`
		EstimationHours *float64 `json:"estimation_time"`
		TaskDate        string   `json:"task_date"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if input.Status == "" {
		input.Status = statusTodo
	}
	v := newValidator()
	v.checkCond(input.Title != "", "title", "must be provided")
	v.checkCond(len(input.Title) <= 100, "title", "must be atmost 100 characters")
	v.checkStatus(input.Status)
	var estimation float64
	if input.EstimationHours != nil {
		estimation = *input.EstimationHours
		v.checkHours(estimation, "estimation_time")
	}
	var taskDate *time.Time
	if input.TaskDate != "" {
		d := v.checkDate(input.TaskDate, "task_date")
		taskDate = &d
	}
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusBadRequest)
		return
	}

	t := &task{
		UserID:          u.ID,
		Title:           input.Title,
		Description:     input.Description,
		Status:          input.Status,
		EstimationHours: estimation,
		TaskDate:        taskDate,
	}
	if input.ProjectID != 0 {
		p, err := app.storage.getAccessibleProject(input.ProjectID, u.ID)
		if err != nil {
			serverError(w, err)
			return
		}
		if p == nil {
			notFound(w)
			return
		}
		t.ProjectID = p.ID
		t.ProjectName = p.Name
	}
	err = app.storage.insertTask(t)
	if err != nil {
		serverError(w, err)
		return
	}
	app.invalidateBoard(u.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"task": newTaskResponse(t)})
}

func (app *application) getTasksHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	f, err := parseTaskFilter(r.URL.Query(), taskOrderFields)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	tasks, count, err := app.storage.getTasks(u.ID, f)
	if err != nil {
		serverError(w, err)
		return
	}
	responses := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, newTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":       responses,
		"count":       count,
		"page":        clampPage(f.page, count),
		"total_pages": totalPages(count),
	})
}

func (app *application) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	id, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	t, err := app.storage.getTaskByID(id, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if t == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": newTaskResponse(t)})
}

func (app *application) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	id, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	t, err := app.storage.getTaskByID(id, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if t == nil {
		notFound(w)
		return
	}

	var input struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Status          string   `json:"status"`
		ProjectID       int      `json:"project_id"`
		EstimationHours *float64 `json:"estimation_time"`
		TaskDate        string   `json:"task_date"`
	}
	err = json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if input.Status == "" {
		input.Status = t.Status
	}
	v := newValidator()
	v.checkCond(input.Title != "", "title", "must be provided")
	v.checkCond(len(input.Title) <= 100, "title", "must be atmost 100 characters")
	v.checkStatus(input.Status)
	var estimation float64
	if input.EstimationHours != nil {
		estimation = *input.EstimationHours
		v.checkHours(estimation, "estimation_time")
	}
	var taskDate *time.Time
	if input.TaskDate != "" {
		d := v.checkDate(input.TaskDate, "task_date")
		taskDate = &d
	}
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusBadRequest)
		return
	}

	t.Title = input.Title
	t.Description = input.Description
	t.Status = input.Status
	t.EstimationHours = estimation
	t.TaskDate = taskDate
	t.ProjectID = 0
	t.ProjectName = ""
	if input.ProjectID != 0 {
		p, err := app.storage.getAccessibleProject(input.ProjectID, u.ID)
		if err != nil {
			serverError(w, err)
			return
		}
		if p == nil {
			notFound(w)
			return
		}
		t.ProjectID = p.ID
		t.ProjectName = p.Name
	}
	err = app.storage.updateTask(t)
	if err != nil {
		serverError(w, err)
		return
	}
	app.invalidateBoard(u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"task": newTaskResponse(t)})
}

func (app *application) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	id, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	deleted, err := app.storage.deleteTask(id, u.ID)
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

// inlineEditTaskHandler applies a partial JSON patch to a task. Fields absent
// from the payload are left untouched.
func (app *application) inlineEditTaskHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	id, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	t, err := app.storage.getTaskByID(id, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if t == nil {
		notFound(w)
		return
	}

	var data map[string]json.RawMessage
	err = json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		writeError(w, errors.New("invalid JSON"), http.StatusBadRequest)
		return
	}

	if raw, ok := data["title"]; ok {
		var title string
		if err := json.Unmarshal(raw, &title); err != nil || title == "" {
			writeError(w, errors.New("title must be a non-empty string"), http.StatusBadRequest)
			return
		}
		t.Title = title
	}
	if raw, ok := data["description"]; ok {
		var description string
		if err := json.Unmarshal(raw, &description); err != nil {
			writeError(w, errors.New("description must be a string"), http.StatusBadRequest)
			return
		}
		t.Description = description
	}
	if raw, ok := data["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err != nil || !isValidStatus(status) {
			writeError(w, errors.New("status must be one of todo, inprogress, done, blocker"), http.StatusBadRequest)
			return
		}
		t.Status = status
	}
	if raw, ok := data["project_id"]; ok {
		projectID, unset, err := parseProjectRef(raw)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		if unset {
			t.ProjectID = 0
			t.ProjectName = ""
		} else {
			p, err := app.storage.getAccessibleProject(projectID, u.ID)
			if err != nil {
				serverError(w, err)
				return
			}
			if p == nil {
				writeError(w, errors.New("project not found"), http.StatusNotFound)
				return
			}
			t.ProjectID = p.ID
			t.ProjectName = p.Name
		}
	}
	if raw, ok := data["task_date"]; ok {
		var s *string
		if err := json.Unmarshal(raw, &s); err != nil {
			writeError(w, errors.New("invalid date format for task_date, use YYYY-MM-DD"), http.StatusBadRequest)
			return
		}
		if s == nil || *s == "" {
			t.TaskDate = nil
		} else {
			d, err := time.Parse(dateLayout, *s)
			if err != nil {
				writeError(w, errors.New("invalid date format for task_date, use YYYY-MM-DD"), http.StatusBadRequest)
				return
			}
			t.TaskDate = &d
		}
	}
	if raw, ok := data["estimation_time"]; ok {
		hours, err := parseHours(raw)
		if err != nil {
			writeError(w, errors.New("invalid format for estimation_time"), http.StatusBadRequest)
			return
		}
		if hours < 0 {
			writeError(w, errors.New("estimation time cannot be negative"), http.StatusBadRequest)
			return
		}
		t.EstimationHours = hours
	}

	err = app.storage.updateTask(t)
	if err != nil {
		serverError(w, err)
		return
	}
	app.invalidateBoard(u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": newTaskResponse(t)})
}

// parseProjectRef interprets the project_id patch value: JSON null, "null"
// and "" all unset the project; a number or numeric string references one.
func parseProjectRef(raw json.RawMessage) (id int, unset bool, err error) {
	if string(raw) == "null" {
		return 0, true, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false, errors.New("project_id must be an integer or null")
	}
	if s == "" || s == "null" {
		return 0, true, nil
	}
	n, err = strconv.Atoi(s)
	if err != nil {
		return 0, false, errors.New("project_id must be an integer or null")
	}
	return n, false, nil
}

// parseHours accepts a JSON number or a numeric string.
func parseHours(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.New("not a number")
	}
	return strconv.ParseFloat(s, 64)
}

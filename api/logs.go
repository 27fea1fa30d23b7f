package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

func (app *application) createTaskLogHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	taskID, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	t, err := app.storage.getTaskByID(taskID, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if t == nil {
		notFound(w)
		return
	}

	var input struct {
		SpentTime json.RawMessage `json:"spent_time"`
		LogDate   string          `json:"log_date"`
		Notes     string          `json:"notes"`
	}
	err = json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	v := newValidator()
	var hours float64
	if input.SpentTime == nil {
		v.checkCond(false, "spent_time", "must be provided")
	} else if hours, err = parseHours(input.SpentTime); err != nil {
		v.checkCond(false, "spent_time", "must be a number")
	} else {
		v.checkHours(hours, "spent_time")
	}
	logDate := v.checkDate(input.LogDate, "log_date")
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusBadRequest)
		return
	}

	l := &taskLog{
		TaskID:     t.ID,
		SpentHours: hours,
		LogDate:    logDate,
		Notes:      input.Notes,
	}
	err = app.storage.insertTaskLog(l)
	if err != nil {
		serverError(w, err)
		return
	}
	app.invalidateBoard(u.ID)
	writeJSON(w, http.StatusCreated, newTaskLogResponse(l))
}

func (app *application) getTaskLogsHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	taskID, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	t, err := app.storage.getTaskByID(taskID, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if t == nil {
		notFound(w)
		return
	}
	logs, err := app.storage.getTaskLogs(t.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	responses := make([]taskLogResponse, 0, len(logs))
	for _, l := range logs {
		responses = append(responses, newTaskLogResponse(l))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (app *application) updateTaskLogHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	logID, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	l, err := app.storage.getTaskLogByID(logID, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if l == nil {
		notFound(w)
		return
	}

	var input struct {
		SpentTime json.RawMessage `json:"spent_time"`
		LogDate   string          `json:"log_date"`
		Notes     *string         `json:"notes"`
	}
	err = json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	v := newValidator()
	var hours float64
	if input.SpentTime == nil {
		v.checkCond(false, "spent_time", "must be provided")
	} else if hours, err = parseHours(input.SpentTime); err != nil {
		v.checkCond(false, "spent_time", "must be a number")
	} else {
		v.checkHours(hours, "spent_time")
	}
	logDate := v.checkDate(input.LogDate, "log_date")
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusBadRequest)
		return
	}

	l.SpentHours = hours
	l.LogDate = logDate
	if input.Notes != nil {
		l.Notes = *input.Notes
	}
	err = app.storage.updateTaskLog(l)
	if err != nil {
		serverError(w, err)
		return
	}
	app.invalidateBoard(u.ID)
	writeJSON(w, http.StatusOK, newTaskLogResponse(l))
}

func (app *application) deleteTaskLogHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	logID, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	l, err := app.storage.getTaskLogByID(logID, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if l == nil {
		notFound(w)
		return
	}
	err = app.storage.deleteTaskLog(l)
	if err != nil {
		serverError(w, err)
		return
	}
	app.invalidateBoard(u.ID)
	w.WriteHeader(http.StatusNoContent)
}

// placeTaskHandler pins a task to today or yesterday with a zero-hour
// placement log, or sends it back to the pool when date is null.
func (app *application) placeTaskHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	taskID, err := readIDParam(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	t, err := app.storage.getTaskByID(taskID, u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if t == nil {
		notFound(w)
		return
	}

	var input struct {
		Date *string `json:"date"`
	}
	err = json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	today := dateOnly(time.Now())
	yesterday := today.AddDate(0, 0, -1)

	if input.Date == nil {
		err = app.storage.clearPlacementLogs(t.ID, []time.Time{today, yesterday})
	} else {
		switch *input.Date {
		case "today":
			err = app.storage.ensurePlacementLog(t.ID, today)
		case "yesterday":
			err = app.storage.ensurePlacementLog(t.ID, yesterday)
		default:
			writeError(w, errors.New(`date must be "today", "yesterday" or null`), http.StatusBadRequest)
			return
		}
	}
	if err != nil {
		serverError(w, err)
		return
	}
	app.invalidateBoard(u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

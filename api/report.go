package main

import (
	"net/http"
	"time"
)

// reportHandler pages through the requester's tasks that have logged time and
// attaches the total logged today. The today figure covers every log of the
// requester dated today, no matter how the list is filtered or paged.
func (app *application) reportHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	f, err := parseTaskFilter(r.URL.Query(), reportOrderFields)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	tasks, count, err := app.storage.getReportTasks(u.ID, f)
	if err != nil {
		serverError(w, err)
		return
	}
	todayTotal, err := app.storage.totalSpentOn(u.ID, dateOnly(time.Now()))
	if err != nil {
		serverError(w, err)
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, newTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":                        responses,
		"count":                        count,
		"page":                         clampPage(f.page, count),
		"total_pages":                  totalPages(count),
		"total_time_spent_today_hours": todayTotal,
	})
}

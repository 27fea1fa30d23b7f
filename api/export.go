package main

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
)

// placeholder stands in for absent todo-level values in the CSV report.
// A blank bio stays blank: only todo columns get the placeholder.
const csvPlaceholder = "N/A"

var csvHeader = []string{
	"Username", "Email", "Bio",
	"Todo Title", "Todo Description", "Project Name", "Status",
	"Time Spent (hours)", "Created At", "Updated At", "Task Date",
}

func (app *application) downloadCSVReportHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	p, err := app.storage.ensureProfile(u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	tasks, err := app.storage.getExportTasks(u.ID)
	if err != nil {
		serverError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="todo_report.csv"`)
	err = writeCSVReport(w, u, p, tasks)
	if err != nil {
		// headers are out at this point, all we can do is log
		serverError(w, err)
	}
}

func writeCSVReport(w io.Writer, u *user, p *userProfile, tasks []*task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	if len(tasks) == 0 {
		row := []string{u.Name, u.Email, p.Bio}
		for i := len(row); i < len(csvHeader); i++ {
			row = append(row, csvPlaceholder)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}

	for _, t := range tasks {
		projectName := csvPlaceholder
		if t.ProjectID != 0 {
			projectName = t.ProjectName
		}
		taskDate := ""
		if t.TaskDate != nil {
			taskDate = t.TaskDate.Format(dateLayout)
		}
		row := []string{
			u.Name,
			u.Email,
			p.Bio,
			t.Title,
			t.Description,
			projectName,
			statusLabel(t.Status),
			strconv.FormatFloat(t.TotalSpentHours, 'f', -1, 64),
			t.CreatedAt.Format(dateTimeLayout),
			t.UpdatedAt.Format(dateTimeLayout),
			taskDate,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

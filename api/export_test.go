package main

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"
)

func parseCSV(t *testing.T, data string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestWriteCSVReportNoTasks(t *testing.T) {
	u := &user{Name: "alice", Email: "alice@example.com"}
	p := &userProfile{Bio: "hi there"}

	var buf bytes.Buffer
	if err := writeCSVReport(&buf, u, p, nil); err != nil {
		t.Fatal(err)
	}
	rows := parseCSV(t, buf.String())
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one placeholder row", len(rows))
	}
	row := rows[1]
	want := []string{"alice", "alice@example.com", "hi there"}
	for i, v := range want {
		if row[i] != v {
			t.Errorf("column %d: got %q, want %q", i, row[i], v)
		}
	}
	for i := 3; i < len(row); i++ {
		if row[i] != csvPlaceholder {
			t.Errorf("column %d: got %q, want %q", i, row[i], csvPlaceholder)
		}
	}
}

func TestWriteCSVReportRows(t *testing.T) {
	u := &user{Name: "alice", Email: "alice@example.com"}
	p := &userProfile{} // blank bio stays blank

	created := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	taskDate := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	tasks := []*task{
		{
			Title:           "In project",
			Description:     "with everything set",
			Status:          statusInProgress,
			ProjectID:       7,
			ProjectName:     "Apollo",
			TotalSpentHours: 2.5,
			CreatedAt:       created,
			UpdatedAt:       created,
			TaskDate:        &taskDate,
		},
		{
			Title:           "Standalone",
			Status:          statusDone,
			TotalSpentHours: 3,
			CreatedAt:       created,
			UpdatedAt:       created,
		},
	}

	var buf bytes.Buffer
	if err := writeCSVReport(&buf, u, p, tasks); err != nil {
		t.Fatal(err)
	}
	rows := parseCSV(t, buf.String())
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header plus two tasks", len(rows))
	}
	first := rows[1]
	if first[2] != "" {
		t.Errorf("blank bio: got %q, want empty", first[2])
	}
	if first[5] != "Apollo" {
		t.Errorf("project column: got %q, want %q", first[5], "Apollo")
	}
	if first[6] != "In Progress" {
		t.Errorf("status column: got %q, want %q", first[6], "In Progress")
	}
	if first[7] != "2.5" {
		t.Errorf("hours column: got %q, want %q", first[7], "2.5")
	}
	if first[8] != "2026-08-01 09:30:00" {
		t.Errorf("created column: got %q, want %q", first[8], "2026-08-01 09:30:00")
	}
	if first[10] != "2026-08-02" {
		t.Errorf("task date column: got %q, want %q", first[10], "2026-08-02")
	}

	second := rows[2]
	if second[5] != csvPlaceholder {
		t.Errorf("projectless task: got %q, want %q", second[5], csvPlaceholder)
	}
	if second[7] != "3" {
		t.Errorf("hours column: got %q, want %q", second[7], "3")
	}
	if second[10] != "" {
		t.Errorf("undated task: got %q, want empty", second[10])
	}
}

func TestDownloadCSVReport(t *testing.T) {
	app, store := newTestApp()
	handler := composeRoutes(app)
	u := seedUser(t, store, "alice", "alice@example.com")

	worked := seedTask(t, store, u, "worked on")
	store.insertTaskLog(&taskLog{TaskID: worked.ID, SpentHours: 1, LogDate: dateOnly(time.Now())})
	seedTask(t, store, u, "no work yet")

	rr := doJSON(t, handler, http.MethodGet, "/v1/report/csv", bearerFor(t, app, u), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("got content type %q, want text/csv", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "todo_report.csv") {
		t.Errorf("got content disposition %q", cd)
	}
	rows := parseCSV(t, rr.Body.String())
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus the worked-on task", len(rows))
	}
	if rows[1][3] != "worked on" {
		t.Errorf("got title %q, want %q", rows[1][3], "worked on")
	}
}

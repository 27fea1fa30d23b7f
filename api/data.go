package main

import "time"

const (
	statusTodo       = "todo"
	statusInProgress = "inprogress"
	statusDone       = "done"
	statusBlocker    = "blocker"
)

var statusLabels = map[string]string{
	statusTodo:       "To Do",
	statusInProgress: "In Progress",
	statusDone:       "Done",
	statusBlocker:    "Blocker",
}

func isValidStatus(s string) bool {
	_, ok := statusLabels[s]
	return ok
}

func statusLabel(s string) string {
	return statusLabels[s]
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

type user struct {
	ID           int       `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Version      int       `json:"-"`
}

type userProfile struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Bio         string    `json:"bio"`
	PicturePath string    `json:"picture_path"`
	CreatedAt   time.Time `json:"created_at"`
}

type project struct {
	ID          int       `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int       `json:"owner_id"`
}

type projectMember struct {
	UserID   int       `json:"user_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// task carries the project name alongside the foreign key so list and report
// queries can join once instead of loading projects a row at a time.
// ProjectID == 0 means the task is not attached to any project.
type task struct {
	ID              int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	UserID          int
	ProjectID       int
	ProjectName     string
	Title           string
	Description     string
	Status          string
	EstimationHours float64
	TotalSpentHours float64
	TaskDate        *time.Time
}

type taskLog struct {
	ID         int
	TaskID     int
	SpentHours float64
	LogDate    time.Time
	Notes      string
}

type taskResponse struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
	StatusLabel     string  `json:"status_label"`
	TaskDate        *string `json:"task_date"`
	EstimationHours float64 `json:"estimation_time"`
	TotalSpentHours float64 `json:"total_spent_hours"`
	ProjectID       *int    `json:"project_id"`
	ProjectName     *string `json:"project_name"`
}

func newTaskResponse(t *task) taskResponse {
	res := taskResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Status:          t.Status,
		StatusLabel:     statusLabel(t.Status),
		EstimationHours: t.EstimationHours,
		TotalSpentHours: t.TotalSpentHours,
	}
	if t.TaskDate != nil {
		d := t.TaskDate.Format(dateLayout)
		res.TaskDate = &d
	}
	if t.ProjectID != 0 {
		id := t.ProjectID
		name := t.ProjectName
		res.ProjectID = &id
		res.ProjectName = &name
	}
	return res
}

type taskLogResponse struct {
	ID         int     `json:"id"`
	TaskID     int     `json:"task_id"`
	SpentHours float64 `json:"spent_time"`
	LogDate    string  `json:"log_date"`
	Notes      string  `json:"notes"`
}

func newTaskLogResponse(l *taskLog) taskLogResponse {
	return taskLogResponse{
		ID:         l.ID,
		TaskID:     l.TaskID,
		SpentHours: l.SpentHours,
		LogDate:    l.LogDate.Format(dateLayout),
		Notes:      l.Notes,
	}
}

// boardTask is the kanban feed entry. It is stored as-is in the board cache,
// so every field must round-trip through JSON.
type boardTask struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	StatusLabel     string     `json:"status_label"`
	TaskDate        *string    `json:"task_date"`
	EstimationHours float64    `json:"estimation_time"`
	TotalSpentHours float64    `json:"total_spent_hours"`
	ProjectID       *int       `json:"project_id"`
	ProjectName     *string    `json:"project_name"`
	Owner           boardOwner `json:"user"`
}

type boardOwner struct {
	Username    string `json:"username"`
	PicturePath string `json:"profile_picture_url"`
}

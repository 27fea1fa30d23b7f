package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const pageSize = 10

// taskFilter is the parsed query surface of the list and report endpoints.
// orderBy must already be normalized through normalizeOrderBy.
type taskFilter struct {
	query     string
	status    string
	startDate *time.Time
	endDate   *time.Time
	projectID int
	orderBy   string
	page      int
}

var taskOrderFields = []string{
	"title", "task_date", "status", "project_name",
	"-title", "-task_date", "-status", "-project_name",
}

var reportOrderFields = []string{
	"title", "task_date", "status", "total_spent_hours", "project_name",
	"-title", "-task_date", "-status", "-total_spent_hours", "-project_name",
}

// normalizeOrderBy returns orderBy if it is on the allow-list, otherwise the
// task_date default. Sort keys never reach the query layer unchecked.
func normalizeOrderBy(orderBy string, allowed []string) string {
	for _, f := range allowed {
		if orderBy == f {
			return orderBy
		}
	}
	return "task_date"
}

// clampPage brings a requested page number into the valid range for count
// items: below 1 clamps to the first page, past the end to the last.
func clampPage(page, count int) int {
	totalPages := (count + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

var orderColumns = map[string]string{
	"title":             "t.title",
	"task_date":         "t.task_date",
	"status":            "t.status",
	"project_name":      "p.name",
	"total_spent_hours": "t.total_spent_hours",
}

func orderClause(orderBy string) string {
	dir := "ASC"
	key := orderBy
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
		key = orderBy[1:]
	}
	col, ok := orderColumns[key]
	if !ok {
		col, dir = "t.task_date", "ASC"
	}
	return fmt.Sprintf("%s %s, t.id ASC", col, dir)
}

const taskColumns = `t.id, t.created_at, t.updated_at, t.user_id, COALESCE(t.project_id, 0), COALESCE(p.name, ''),
			  t.title, t.description, t.status, t.estimation_hours, t.total_spent_hours, t.task_date`

func scanTask(row interface{ Scan(dest ...any) error }) (*task, error) {
	var t task
	var taskDate sql.NullTime
	err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.UserID, &t.ProjectID, &t.ProjectName,
		&t.Title, &t.Description, &t.Status, &t.EstimationHours, &t.TotalSpentHours, &taskDate)
	if err != nil {
		return nil, err
	}
	if taskDate.Valid {
		d := taskDate.Time
		t.TaskDate = &d
	}
	return &t, nil
}

func (s *storage) insertTask(t *task) error {
	query := `INSERT INTO tasks (user_id, project_id, title, description, status, estimation_hours, task_date)
			  VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7)
			  RETURNING id, created_at, updated_at, total_spent_hours`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, t.UserID, t.ProjectID, t.Title, t.Description, t.Status, t.EstimationHours, t.TaskDate)
	return row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.TotalSpentHours)
}

func (s *storage) getTaskByID(id, userID int) (*task, error) {
	query := `SELECT ` + taskColumns + `
			  FROM tasks t
			  LEFT JOIN projects p ON p.id = t.project_id
			  WHERE t.id = $1 AND t.user_id = $2`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	t, err := scanTask(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return t, nil
}

func (s *storage) updateTask(t *task) error {
	query := `UPDATE tasks
			  SET title = $1, description = $2, status = $3, project_id = NULLIF($4, 0),
				  estimation_hours = $5, task_date = $6, updated_at = now()
			  WHERE id = $7 AND user_id = $8
			  RETURNING updated_at`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, t.Title, t.Description, t.Status, t.ProjectID,
		t.EstimationHours, t.TaskDate, t.ID, t.UserID)
	return row.Scan(&t.UpdatedAt)
}

func (s *storage) deleteTask(id, userID int) (bool, error) {
	query := `DELETE FROM tasks
			  WHERE id = $1 AND user_id = $2`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// taskConditions builds the WHERE clause shared by the list and report
// queries. Report mode scopes to tasks with at least one positive-time log
// and applies the date range to log dates instead of the task date.
func taskConditions(userID int, f taskFilter, report bool) (string, []any) {
	conditions := []string{"t.user_id = $1"}
	args := []any{userID}
	next := func(arg any) int {
		args = append(args, arg)
		return len(args)
	}
	if report {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM task_logs l WHERE l.task_id = t.id AND l.spent_hours > 0)")
	}
	if f.query != "" {
		n := next("%" + f.query + "%")
		conditions = append(conditions,
			fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d OR p.name ILIKE $%d)", n, n, n))
	}
	if f.status != "" {
		n := next(f.status)
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", n))
	}
	if f.startDate != nil {
		n := next(*f.startDate)
		if report {
			conditions = append(conditions,
				fmt.Sprintf("EXISTS (SELECT 1 FROM task_logs l WHERE l.task_id = t.id AND l.log_date >= $%d)", n))
		} else {
			conditions = append(conditions, fmt.Sprintf("t.task_date >= $%d", n))
		}
	}
	if f.endDate != nil {
		n := next(*f.endDate)
		if report {
			conditions = append(conditions,
				fmt.Sprintf("EXISTS (SELECT 1 FROM task_logs l WHERE l.task_id = t.id AND l.log_date <= $%d)", n))
		} else {
			conditions = append(conditions, fmt.Sprintf("t.task_date <= $%d", n))
		}
	}
	if f.projectID != 0 {
		n := next(f.projectID)
		conditions = append(conditions, fmt.Sprintf("t.project_id = $%d", n))
	}
	return strings.Join(conditions, " AND "), args
}

func (s *storage) queryTasks(userID int, f taskFilter, report bool) ([]*task, int, error) {
	where, args := taskConditions(userID, f, report)
	from := `FROM tasks t
			 LEFT JOIN projects p ON p.id = t.project_id
			 WHERE ` + where

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) `+from, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	page := clampPage(f.page, count)
	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d`,
		taskColumns, from, orderClause(f.orderBy), pageSize, (page-1)*pageSize)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []*task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	return tasks, count, rows.Err()
}

func (s *storage) getTasks(userID int, f taskFilter) ([]*task, int, error) {
	return s.queryTasks(userID, f, false)
}

func (s *storage) getReportTasks(userID int, f taskFilter) ([]*task, int, error) {
	return s.queryTasks(userID, f, true)
}

// getExportTasks returns every task of the user with time on the clock, for
// the CSV report.
func (s *storage) getExportTasks(userID int) ([]*task, error) {
	query := `SELECT ` + taskColumns + `
			  FROM tasks t
			  LEFT JOIN projects p ON p.id = t.project_id
			  WHERE t.user_id = $1 AND t.total_spent_hours > 0
			  ORDER BY t.created_at, t.id`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *storage) totalSpentOn(userID int, day time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(l.spent_hours), 0)
			  FROM task_logs l
			  JOIN tasks t ON t.id = l.task_id
			  WHERE t.user_id = $1 AND l.log_date = $2`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var total float64
	err := s.db.QueryRowContext(ctx, query, userID, day).Scan(&total)
	return total, err
}

// recomputeTaskTotal refreshes the cached total from the logs. It runs inside
// the transaction of the log mutation that made the total stale.
func recomputeTaskTotal(ctx context.Context, tx *sql.Tx, taskID int) error {
	query := `UPDATE tasks
			  SET total_spent_hours = COALESCE((SELECT SUM(spent_hours) FROM task_logs WHERE task_id = $1), 0),
				  updated_at = now()
			  WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, taskID)
	return err
}

func (s *storage) insertTaskLog(l *taskLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO task_logs (task_id, spent_hours, log_date, notes)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	err = tx.QueryRowContext(ctx, query, l.TaskID, l.SpentHours, l.LogDate, l.Notes).Scan(&l.ID)
	if err != nil {
		return err
	}
	if err := recomputeTaskTotal(ctx, tx, l.TaskID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *storage) getTaskLogs(taskID int) ([]*taskLog, error) {
	query := `SELECT id, task_id, spent_hours, log_date, notes
			  FROM task_logs
			  WHERE task_id = $1
			  ORDER BY log_date, id`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*taskLog
	for rows.Next() {
		var l taskLog
		err := rows.Scan(&l.ID, &l.TaskID, &l.SpentHours, &l.LogDate, &l.Notes)
		if err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (s *storage) getTaskLogByID(logID, userID int) (*taskLog, error) {
	query := `SELECT l.id, l.task_id, l.spent_hours, l.log_date, l.notes
			  FROM task_logs l
			  JOIN tasks t ON t.id = l.task_id
			  WHERE l.id = $1 AND t.user_id = $2`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var l taskLog
	err := s.db.QueryRowContext(ctx, query, logID, userID).Scan(&l.ID, &l.TaskID, &l.SpentHours, &l.LogDate, &l.Notes)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &l, nil
}

func (s *storage) updateTaskLog(l *taskLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE task_logs
			  SET spent_hours = $1, log_date = $2, notes = $3
			  WHERE id = $4`
	_, err = tx.ExecContext(ctx, query, l.SpentHours, l.LogDate, l.Notes, l.ID)
	if err != nil {
		return err
	}
	if err := recomputeTaskTotal(ctx, tx, l.TaskID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *storage) deleteTaskLog(l *taskLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `DELETE FROM task_logs
			  WHERE id = $1`
	_, err = tx.ExecContext(ctx, query, l.ID)
	if err != nil {
		return err
	}
	if err := recomputeTaskTotal(ctx, tx, l.TaskID); err != nil {
		return err
	}
	return tx.Commit()
}

// ensurePlacementLog records that a task sits on the given day by creating a
// zero-hour log, unless the day already has a log for the task.
func (s *storage) ensurePlacementLog(taskID int, day time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO task_logs (task_id, spent_hours, log_date)
			  SELECT $1, 0, $2
			  WHERE NOT EXISTS (SELECT 1 FROM task_logs WHERE task_id = $1 AND log_date = $2)`
	_, err = tx.ExecContext(ctx, query, taskID, day)
	if err != nil {
		return err
	}
	if err := recomputeTaskTotal(ctx, tx, taskID); err != nil {
		return err
	}
	return tx.Commit()
}

// clearPlacementLogs removes zero-hour placement logs on the given days,
// putting the task back into the unscheduled pool.
func (s *storage) clearPlacementLogs(taskID int, days []time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `DELETE FROM task_logs
			  WHERE task_id = $1 AND spent_hours = 0 AND log_date = ANY($2)`
	_, err = tx.ExecContext(ctx, query, taskID, pq.Array(days))
	if err != nil {
		return err
	}
	if err := recomputeTaskTotal(ctx, tx, taskID); err != nil {
		return err
	}
	return tx.Commit()
}

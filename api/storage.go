package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.db.maxOpenConnections)
	db.SetMaxIdleConns(cfg.db.maxIdleConnections)
	db.SetConnMaxIdleTime(cfg.db.maxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// dataStore is everything the handlers need from persistence. *storage is the
// Postgres implementation; tests substitute an in-memory one.
type dataStore interface {
	getUserByEmail(email string) (*user, error)
	getUserByName(name string) (*user, error)
	getUserByID(id int) (*user, error)
	insertUser(u *user) error
	ensureProfile(userID int) (*userProfile, error)
	updateProfile(p *userProfile) error

	insertTask(t *task) error
	getTaskByID(id, userID int) (*task, error)
	updateTask(t *task) error
	deleteTask(id, userID int) (bool, error)
	getTasks(userID int, f taskFilter) ([]*task, int, error)

	insertTaskLog(l *taskLog) error
	getTaskLogs(taskID int) ([]*taskLog, error)
	getTaskLogByID(logID, userID int) (*taskLog, error)
	updateTaskLog(l *taskLog) error
	deleteTaskLog(l *taskLog) error
	ensurePlacementLog(taskID int, day time.Time) error
	clearPlacementLogs(taskID int, days []time.Time) error

	getReportTasks(userID int, f taskFilter) ([]*task, int, error)
	getExportTasks(userID int) ([]*task, error)
	totalSpentOn(userID int, day time.Time) (float64, error)

	insertProject(p *project) error
	getProjects(userID int) ([]*project, error)
	getAccessibleProject(id, userID int) (*project, error)
	deleteProject(id, ownerID int) (bool, error)
	addProjectMember(projectID, userID int) error
	getProjectMembers(projectID int) ([]*projectMember, error)
	getProjectTasks(projectID int) ([]*task, error)

	getBoardTasks(userID, projectID int) ([]boardTask, error)

	saveJiraToken(userID int, token string) error
	getJiraToken(userID int) (string, error)
}

type storage struct {
	db *sql.DB
}

func newStorage(db *sql.DB) *storage {
	return &storage{
		db: db,
	}
}

// errDuplicateName marks a unique-name conflict independently of the driver.
var errDuplicateName = errors.New("duplicate name")

func isUniqueViolation(err error) bool {
	if errors.Is(err, errDuplicateName) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *storage) getUserByEmail(email string) (*user, error) {
	query := `SELECT id, created_at, name, email, password_hash, version
			  FROM users
			  WHERE email = $1`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, email)
	var u user
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Name, &u.Email, &u.PasswordHash, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &u, nil
}

func (s *storage) getUserByName(name string) (*user, error) {
	query := `SELECT id, created_at, name, email, password_hash, version
			  FROM users
			  WHERE name = $1`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, name)
	var u user
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Name, &u.Email, &u.PasswordHash, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &u, nil
}

func (s *storage) getUserByID(id int) (*user, error) {
	query := `SELECT id, created_at, name, email, password_hash, version
			  FROM users
			  WHERE id = $1`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, id)
	var u user
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Name, &u.Email, &u.PasswordHash, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &u, nil
}

func (s *storage) insertUser(u *user) error {
	query := `INSERT INTO users (name, email, password_hash)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at, version`

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, query, u.Name, u.Email, u.PasswordHash)
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Version)
	return err
}

// ensureProfile creates the profile row for a user if it is missing and
// returns it. Safe to call any number of times.
func (s *storage) ensureProfile(userID int) (*userProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	insert := `INSERT INTO profiles (user_id)
			   VALUES ($1)
			   ON CONFLICT (user_id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, insert, userID)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, bio, picture_path, created_at
			  FROM profiles
			  WHERE user_id = $1`
	row := s.db.QueryRowContext(ctx, query, userID)
	var p userProfile
	err = row.Scan(&p.ID, &p.UserID, &p.Bio, &p.PicturePath, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *storage) updateProfile(p *userProfile) error {
	query := `UPDATE profiles SET bio = $1, picture_path = $2
			  WHERE user_id = $3`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, query, p.Bio, p.PicturePath, p.UserID)
	return err
}

func (s *storage) saveJiraToken(userID int, token string) error {
	query := `INSERT INTO jira_tokens (user_id, access_token)
			  VALUES ($1, $2)
			  ON CONFLICT (user_id) DO UPDATE SET access_token = EXCLUDED.access_token, updated_at = now()`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, query, userID, token)
	return err
}

func (s *storage) getJiraToken(userID int) (string, error) {
	query := `SELECT access_token
			  FROM jira_tokens
			  WHERE user_id = $1`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var token string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&token)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return "", nil
		default:
			return "", err
		}
	}
	return token, nil
}

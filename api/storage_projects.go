package main

import (
	"context"
	"database/sql"
	"errors"
)

func (s *storage) insertProject(p *project) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO projects (name, description, owner_id)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at`
	err = tx.QueryRowContext(ctx, query, p.Name, p.Description, p.OwnerID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return err
	}

	// the owner starts out as a member of their own project
	member := `INSERT INTO project_memberships (project_id, user_id)
			   VALUES ($1, $2)`
	_, err = tx.ExecContext(ctx, member, p.ID, p.OwnerID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *storage) getProjects(userID int) ([]*project, error) {
	query := `SELECT DISTINCT p.id, p.created_at, p.name, p.description, COALESCE(p.owner_id, 0)
			  FROM projects p
			  LEFT JOIN project_memberships m ON m.project_id = p.id
			  WHERE p.owner_id = $1 OR m.user_id = $1
			  ORDER BY p.name`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*project
	for rows.Next() {
		var p project
		err := rows.Scan(&p.ID, &p.CreatedAt, &p.Name, &p.Description, &p.OwnerID)
		if err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// getAccessibleProject returns the project only when the user owns it or is a
// member. Anything else reads as not found.
func (s *storage) getAccessibleProject(id, userID int) (*project, error) {
	query := `SELECT DISTINCT p.id, p.created_at, p.name, p.description, COALESCE(p.owner_id, 0)
			  FROM projects p
			  LEFT JOIN project_memberships m ON m.project_id = p.id
			  WHERE p.id = $1 AND (p.owner_id = $2 OR m.user_id = $2)`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, id, userID)
	var p project
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Name, &p.Description, &p.OwnerID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &p, nil
}

// deleteProject removes the project; dependent tasks keep living with their
// project reference set to NULL by the schema.
func (s *storage) deleteProject(id, ownerID int) (bool, error) {
	query := `DELETE FROM projects
			  WHERE id = $1 AND owner_id = $2`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *storage) addProjectMember(projectID, userID int) error {
	query := `INSERT INTO project_memberships (project_id, user_id)
			  VALUES ($1, $2)
			  ON CONFLICT (project_id, user_id) DO NOTHING`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, query, projectID, userID)
	return err
}

func (s *storage) getProjectMembers(projectID int) ([]*projectMember, error) {
	query := `SELECT u.id, u.name, m.joined_at
			  FROM project_memberships m
			  JOIN users u ON u.id = m.user_id
			  WHERE m.project_id = $1
			  ORDER BY m.joined_at, u.id`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*projectMember
	for rows.Next() {
		var m projectMember
		err := rows.Scan(&m.UserID, &m.Name, &m.JoinedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (s *storage) getProjectTasks(projectID int) ([]*task, error) {
	query := `SELECT ` + taskColumns + `
			  FROM tasks t
			  LEFT JOIN projects p ON p.id = t.project_id
			  WHERE t.project_id = $1
			  ORDER BY t.status, t.created_at`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, projectID)
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

// getBoardTasks lists every task in a project the user owns or belongs to,
// plus the user's own tasks that sit outside any project, oldest first.
// projectID narrows the board to one project; 0 means all of them.
func (s *storage) getBoardTasks(userID, projectID int) ([]boardTask, error) {
	query := `SELECT t.id, t.title, t.description, t.status, t.task_date,
					 t.estimation_hours, t.total_spent_hours,
					 COALESCE(t.project_id, 0), COALESCE(p.name, ''),
					 u.name, COALESCE(pr.picture_path, '')
			  FROM tasks t
			  JOIN users u ON u.id = t.user_id
			  LEFT JOIN projects p ON p.id = t.project_id
			  LEFT JOIN profiles pr ON pr.user_id = u.id
			  WHERE (t.project_id IN (SELECT p2.id
									  FROM projects p2
									  LEFT JOIN project_memberships m ON m.project_id = p2.id
									  WHERE p2.owner_id = $1 OR m.user_id = $1)
					 OR (t.project_id IS NULL AND t.user_id = $1))
				AND ($2 = 0 OR t.project_id = $2)
			  ORDER BY t.created_at, t.id`
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, userID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []boardTask{}
	for rows.Next() {
		var b boardTask
		var taskDate sql.NullTime
		var projID int
		var projName string
		err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Status, &taskDate,
			&b.EstimationHours, &b.TotalSpentHours, &projID, &projName,
			&b.Owner.Username, &b.Owner.PicturePath)
		if err != nil {
			return nil, err
		}
		b.StatusLabel = statusLabel(b.Status)
		if taskDate.Valid {
			d := taskDate.Time.Format(dateLayout)
			b.TaskDate = &d
		}
		if projID != 0 {
			b.ProjectID = &projID
			b.ProjectName = &projName
		}
		tasks = append(tasks, b)
	}
	return tasks, rows.Err()
}

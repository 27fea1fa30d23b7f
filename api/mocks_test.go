package main

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory dataStore used by the handler tests. It mirrors
// the semantics of the Postgres implementation, including the transactional
// recompute of task totals on log mutations.
type memStore struct {
	mu          sync.Mutex
	nextID      int
	users       map[int]*user
	profiles    map[int]*userProfile // keyed by user id
	tasks       map[int]*task
	logs        map[int]*taskLog
	projects    map[int]*project
	memberships []membership
	jiraTokens  map[int]string
}

type membership struct {
	projectID int
	userID    int
	joinedAt  time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[int]*user),
		profiles:   make(map[int]*userProfile),
		tasks:      make(map[int]*task),
		logs:       make(map[int]*taskLog),
		projects:   make(map[int]*project),
		jiraTokens: make(map[int]string),
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func copyTask(t *task) *task {
	c := *t
	if t.TaskDate != nil {
		d := *t.TaskDate
		c.TaskDate = &d
	}
	return &c
}

func (s *memStore) getUserByEmail(email string) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) getUserByName(name string) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) getUserByID(id int) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (s *memStore) insertUser(u *user) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	u.CreatedAt = time.Now()
	u.Version = 1
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *memStore) ensureProfile(userID int) (*userProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &userProfile{
			ID:        s.id(),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		s.profiles[userID] = p
	}
	c := *p
	return &c, nil
}

func (s *memStore) updateProfile(p *userProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.profiles[p.UserID]
	if ok {
		stored.Bio = p.Bio
		stored.PicturePath = p.PicturePath
	}
	return nil
}

func (s *memStore) insertTask(t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	s.tasks[t.ID] = copyTask(t)
	return nil
}

func (s *memStore) getTaskByID(id, userID int) (*task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return copyTask(t), nil
}

func (s *memStore) updateTask(t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tasks[t.ID]
	if !ok || stored.UserID != t.UserID {
		return nil
	}
	t.UpdatedAt = time.Now()
	t.TotalSpentHours = stored.TotalSpentHours
	t.CreatedAt = stored.CreatedAt
	s.tasks[t.ID] = copyTask(t)
	return nil
}

func (s *memStore) deleteTask(id, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(s.tasks, id)
	for logID, l := range s.logs {
		if l.TaskID == id {
			delete(s.logs, logID)
		}
	}
	return true, nil
}

func (s *memStore) recompute(taskID int) {
	t, ok := s.tasks[taskID]
	if !ok {
		return
	}
	total := 0.0
	for _, l := range s.logs {
		if l.TaskID == taskID {
			total += l.SpentHours
		}
	}
	t.TotalSpentHours = total
	t.UpdatedAt = time.Now()
}

func (s *memStore) insertTaskLog(l *taskLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id()
	c := *l
	s.logs[l.ID] = &c
	s.recompute(l.TaskID)
	return nil
}

func (s *memStore) getTaskLogs(taskID int) ([]*taskLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []*taskLog
	for _, l := range s.logs {
		if l.TaskID == taskID {
			c := *l
			logs = append(logs, &c)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].LogDate.Equal(logs[j].LogDate) {
			return logs[i].LogDate.Before(logs[j].LogDate)
		}
		return logs[i].ID < logs[j].ID
	})
	return logs, nil
}

func (s *memStore) getTaskLogByID(logID, userID int) (*taskLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[logID]
	if !ok {
		return nil, nil
	}
	t, ok := s.tasks[l.TaskID]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	c := *l
	return &c, nil
}

func (s *memStore) updateTaskLog(l *taskLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.logs[l.ID] = &c
	s.recompute(l.TaskID)
	return nil
}

func (s *memStore) deleteTaskLog(l *taskLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, l.ID)
	s.recompute(l.TaskID)
	return nil
}

func (s *memStore) ensurePlacementLog(taskID int, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.logs {
		if l.TaskID == taskID && l.LogDate.Equal(day) {
			return nil
		}
	}
	id := s.id()
	s.logs[id] = &taskLog{ID: id, TaskID: taskID, LogDate: day}
	s.recompute(taskID)
	return nil
}

func (s *memStore) clearPlacementLogs(taskID int, days []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.logs {
		if l.TaskID != taskID || l.SpentHours != 0 {
			continue
		}
		for _, day := range days {
			if l.LogDate.Equal(day) {
				delete(s.logs, id)
				break
			}
		}
	}
	s.recompute(taskID)
	return nil
}

func (s *memStore) matchFilter(t *task, f taskFilter, report bool) bool {
	if report {
		hasPositive := false
		for _, l := range s.logs {
			if l.TaskID == t.ID && l.SpentHours > 0 {
				hasPositive = true
				break
			}
		}
		if !hasPositive {
			return false
		}
	}
	if f.query != "" {
		q := strings.ToLower(f.query)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) &&
			!strings.Contains(strings.ToLower(t.ProjectName), q) {
			return false
		}
	}
	if f.status != "" && t.Status != f.status {
		return false
	}
	if f.projectID != 0 && t.ProjectID != f.projectID {
		return false
	}
	if f.startDate != nil || f.endDate != nil {
		if report {
			inRange := false
			for _, l := range s.logs {
				if l.TaskID != t.ID {
					continue
				}
				if f.startDate != nil && l.LogDate.Before(*f.startDate) {
					continue
				}
				if f.endDate != nil && l.LogDate.After(*f.endDate) {
					continue
				}
				inRange = true
				break
			}
			if !inRange {
				return false
			}
		} else {
			if t.TaskDate == nil {
				return false
			}
			if f.startDate != nil && t.TaskDate.Before(*f.startDate) {
				return false
			}
			if f.endDate != nil && t.TaskDate.After(*f.endDate) {
				return false
			}
		}
	}
	return true
}

func sortTasks(tasks []*task, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	key := strings.TrimPrefix(orderBy, "-")
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if desc {
			a, b = b, a
		}
		switch key {
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case "project_name":
			if a.ProjectName != b.ProjectName {
				return a.ProjectName < b.ProjectName
			}
		case "total_spent_hours":
			if a.TotalSpentHours != b.TotalSpentHours {
				return a.TotalSpentHours < b.TotalSpentHours
			}
		default: // task_date, nulls last ascending
			switch {
			case a.TaskDate == nil && b.TaskDate == nil:
			case a.TaskDate == nil:
				return false
			case b.TaskDate == nil:
				return true
			case !a.TaskDate.Equal(*b.TaskDate):
				return a.TaskDate.Before(*b.TaskDate)
			}
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func (s *memStore) queryTasks(userID int, f taskFilter, report bool) ([]*task, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*task
	for _, t := range s.tasks {
		if t.UserID == userID && s.matchFilter(t, f, report) {
			matched = append(matched, copyTask(t))
		}
	}
	sortTasks(matched, f.orderBy)
	count := len(matched)
	page := clampPage(f.page, count)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > count {
		start = count
	}
	if end > count {
		end = count
	}
	return matched[start:end], count, nil
}

func (s *memStore) getTasks(userID int, f taskFilter) ([]*task, int, error) {
	return s.queryTasks(userID, f, false)
}

func (s *memStore) getReportTasks(userID int, f taskFilter) ([]*task, int, error) {
	return s.queryTasks(userID, f, true)
}

func (s *memStore) getExportTasks(userID int) ([]*task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tasks []*task
	for _, t := range s.tasks {
		if t.UserID == userID && t.TotalSpentHours > 0 {
			tasks = append(tasks, copyTask(t))
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *memStore) totalSpentOn(userID int, day time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, l := range s.logs {
		t, ok := s.tasks[l.TaskID]
		if ok && t.UserID == userID && l.LogDate.Equal(day) {
			total += l.SpentHours
		}
	}
	return total, nil
}

func (s *memStore) insertProject(p *project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects {
		if existing.Name == p.Name {
			return errDuplicateName
		}
	}
	p.ID = s.id()
	p.CreatedAt = time.Now()
	c := *p
	s.projects[p.ID] = &c
	s.memberships = append(s.memberships, membership{projectID: p.ID, userID: p.OwnerID, joinedAt: time.Now()})
	return nil
}

func (s *memStore) accessible(projectID, userID int) bool {
	p, ok := s.projects[projectID]
	if !ok {
		return false
	}
	if p.OwnerID == userID {
		return true
	}
	for _, m := range s.memberships {
		if m.projectID == projectID && m.userID == userID {
			return true
		}
	}
	return false
}

func (s *memStore) getProjects(userID int) ([]*project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var projects []*project
	for id, p := range s.projects {
		if s.accessible(id, userID) {
			c := *p
			projects = append(projects, &c)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

func (s *memStore) getAccessibleProject(id, userID int) (*project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accessible(id, userID) {
		return nil, nil
	}
	c := *s.projects[id]
	return &c, nil
}

func (s *memStore) deleteProject(id, ownerID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	delete(s.projects, id)
	kept := s.memberships[:0]
	for _, m := range s.memberships {
		if m.projectID != id {
			kept = append(kept, m)
		}
	}
	s.memberships = kept
	// tasks survive with the project reference cleared
	for _, t := range s.tasks {
		if t.ProjectID == id {
			t.ProjectID = 0
			t.ProjectName = ""
		}
	}
	return true, nil
}

func (s *memStore) addProjectMember(projectID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.projectID == projectID && m.userID == userID {
			return nil
		}
	}
	s.memberships = append(s.memberships, membership{projectID: projectID, userID: userID, joinedAt: time.Now()})
	return nil
}

func (s *memStore) getProjectMembers(projectID int) ([]*projectMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var members []*projectMember
	for _, m := range s.memberships {
		if m.projectID != projectID {
			continue
		}
		u, ok := s.users[m.userID]
		if !ok {
			continue
		}
		members = append(members, &projectMember{UserID: u.ID, Name: u.Name, JoinedAt: m.joinedAt})
	}
	return members, nil
}

func (s *memStore) getProjectTasks(projectID int) ([]*task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tasks []*task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, copyTask(t))
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *memStore) getBoardTasks(userID, projectID int) ([]boardTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var visible []*task
	for _, t := range s.tasks {
		if projectID != 0 && t.ProjectID != projectID {
			continue
		}
		if t.ProjectID != 0 && s.accessible(t.ProjectID, userID) {
			visible = append(visible, t)
		} else if t.ProjectID == 0 && t.UserID == userID {
			visible = append(visible, t)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].ID < visible[j].ID })
	board := []boardTask{}
	for _, t := range visible {
		b := boardTask{
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
			b.TaskDate = &d
		}
		if t.ProjectID != 0 {
			id := t.ProjectID
			name := t.ProjectName
			b.ProjectID = &id
			b.ProjectName = &name
		}
		if owner, ok := s.users[t.UserID]; ok {
			b.Owner.Username = owner.Name
			if p, ok := s.profiles[owner.ID]; ok {
				b.Owner.PicturePath = p.PicturePath
			}
		}
		board = append(board, b)
	}
	return board, nil
}

func (s *memStore) saveJiraToken(userID int, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jiraTokens[userID] = token
	return nil
}

func (s *memStore) getJiraToken(userID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jiraTokens[userID], nil
}

func newTestApp() (*application, *memStore) {
	store := newMemStore()
	app := &application{
		storage:    store,
		jiraStates: newStateCache(),
		jiraClient: &http.Client{},
	}
	app.config.env = "test"
	app.config.jwt.secret = "test-secret"
	return app, store
}

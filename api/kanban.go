package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"
)

// kanbanTasksHandler serves the board feed: every task the requester can see,
// as a flat array the board groups by status. An optional project_id narrows
// the feed; a project the requester cannot access yields an empty feed rather
// than an error.
func (app *application) kanbanTasksHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)

	projectID := 0
	if s := r.URL.Query().Get("project_id"); s != "" && s != "all" {
		id, err := strconv.Atoi(s)
		if err != nil || id < 1 {
			writeJSON(w, http.StatusOK, []boardTask{})
			return
		}
		p, err := app.storage.getAccessibleProject(id, u.ID)
		if err != nil {
			serverError(w, err)
			return
		}
		if p == nil {
			writeJSON(w, http.StatusOK, []boardTask{})
			return
		}
		projectID = p.ID
	}

	tasks, err := app.boardTasks(r.Context(), u.ID, projectID)
	if err != nil {
		serverError(w, err)
		return
	}
	if tasks == nil {
		tasks = []boardTask{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// boardTasks reads the feed through the cache when one is configured.
// Concurrent fills for the same key are collapsed into a single query.
func (app *application) boardTasks(ctx context.Context, userID, projectID int) ([]boardTask, error) {
	if app.board == nil {
		return app.storage.getBoardTasks(userID, projectID)
	}

	cached, err := app.board.get(ctx, userID, projectID)
	if err != nil {
		log.Println(err)
	}
	if cached != nil {
		return cached, nil
	}

	v, err, _ := app.boardGroup.Do(boardKey(userID, projectID), func() (any, error) {
		tasks, err := app.storage.getBoardTasks(userID, projectID)
		if err != nil {
			return nil, err
		}
		setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := app.board.set(setCtx, userID, projectID, tasks); err != nil {
			log.Println(err)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]boardTask), nil
}

// invalidateBoard drops the requester's cached feeds after a write. Best
// effort: a failed invalidation only delays freshness by the cache TTL.
func (app *application) invalidateBoard(userID int) {
	if app.board == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.board.invalidateUser(ctx, userID); err != nil {
		log.Println(err)
	}
}

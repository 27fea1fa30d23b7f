package main

import (
	"net/http"
)

func composeRoutes(app *application) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/healthcheck", app.healthCheckHandler)

	mux.HandleFunc("POST /v1/users", app.createUserHandler)
	mux.HandleFunc("POST /v1/users/auth", app.authenticateUserHandler)

	mux.HandleFunc("GET /v1/profile", app.requireAuthenticatedUser(app.getProfileHandler))
	mux.HandleFunc("PUT /v1/profile", app.requireAuthenticatedUser(app.updateProfileHandler))

	mux.HandleFunc("POST /v1/tasks", app.requireAuthenticatedUser(app.createTaskHandler))
	mux.HandleFunc("GET /v1/tasks", app.requireAuthenticatedUser(app.getTasksHandler))
	mux.HandleFunc("GET /v1/tasks/{id}", app.requireAuthenticatedUser(app.getTaskHandler))
	mux.HandleFunc("PUT /v1/tasks/{id}", app.requireAuthenticatedUser(app.updateTaskHandler))
	mux.HandleFunc("PATCH /v1/tasks/{id}", app.requireAuthenticatedUser(app.inlineEditTaskHandler))
	mux.HandleFunc("DELETE /v1/tasks/{id}", app.requireAuthenticatedUser(app.deleteTaskHandler))

	mux.HandleFunc("POST /v1/tasks/{id}/logs", app.requireAuthenticatedUser(app.createTaskLogHandler))
	mux.HandleFunc("GET /v1/tasks/{id}/logs", app.requireAuthenticatedUser(app.getTaskLogsHandler))
	mux.HandleFunc("PUT /v1/logs/{id}", app.requireAuthenticatedUser(app.updateTaskLogHandler))
	mux.HandleFunc("DELETE /v1/logs/{id}", app.requireAuthenticatedUser(app.deleteTaskLogHandler))
	mux.HandleFunc("POST /v1/tasks/{id}/placement", app.requireAuthenticatedUser(app.placeTaskHandler))

	mux.HandleFunc("GET /v1/report", app.requireAuthenticatedUser(app.reportHandler))
	mux.HandleFunc("GET /v1/report/csv", app.requireAuthenticatedUser(app.downloadCSVReportHandler))
	mux.HandleFunc("GET /v1/kanban/tasks", app.requireAuthenticatedUser(app.kanbanTasksHandler))

	mux.HandleFunc("GET /v1/projects", app.requireAuthenticatedUser(app.getProjectsHandler))
	mux.HandleFunc("POST /v1/projects", app.requireAuthenticatedUser(app.createProjectHandler))
	mux.HandleFunc("GET /v1/projects/{id}", app.requireAuthenticatedUser(app.getProjectHandler))
	mux.HandleFunc("DELETE /v1/projects/{id}", app.requireAuthenticatedUser(app.deleteProjectHandler))
	mux.HandleFunc("POST /v1/projects/{id}/members", app.requireAuthenticatedUser(app.addProjectMemberHandler))

	mux.HandleFunc("GET /v1/jira/auth", app.requireAuthenticatedUser(app.jiraAuthHandler))
	mux.HandleFunc("GET /v1/jira/callback", app.jiraCallbackHandler)
	mux.HandleFunc("GET /v1/jira/projects", app.requireAuthenticatedUser(app.jiraProjectsHandler))

	var handler http.Handler = mux
	if len(app.config.cors.trustedOrigins) != 0 {
		handler = app.enableCORS(handler)
	}
	if app.config.limiter.enabled {
		handler = app.rateLimit(handler)
	}
	return handler
}

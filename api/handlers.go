package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	healthCheck := struct {
		Status      string `json:"status"`
		Environment string `json:"environment"`
		Version     string `json:"version"`
	}{
		Status:      "available",
		Environment: app.config.env,
		Version:     version,
	}
	writeJSON(w, http.StatusOK, healthCheck)
}

func (app *application) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkCond(input.Name != "", "name", "must be provided")
	v.checkCond(len(input.Name) <= 255, "name", "must be atmost 255 characters")
	v.checkEmail(input.Email)
	v.checkPassword(input.Password)
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusBadRequest)
		return
	}

	existing, err := app.storage.getUserByEmail(input.Email)
	if err != nil {
		serverError(w, err)
		return
	}
	if existing != nil {
		writeError(w, errors.New("email already in use"), http.StatusBadRequest)
		return
	}
	existing, err = app.storage.getUserByName(input.Name)
	if err != nil {
		serverError(w, err)
		return
	}
	if existing != nil {
		writeError(w, errors.New("a user with that username already exists"), http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		serverError(w, err)
		return
	}
	u := &user{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	}
	err = app.storage.insertUser(u)
	if err != nil {
		serverError(w, err)
		return
	}
	// every account gets exactly one profile
	_, err = app.storage.ensureProfile(u.ID)
	if err != nil {
		serverError(w, err)
		return
	}

	if app.mailer != nil {
		go func() {
			err := app.mailer.send(u.Email, welcomeTemplate, map[string]any{"Name": u.Name})
			if err != nil {
				log.Println(err)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (app *application) authenticateUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	v := newValidator()
	v.checkEmail(input.Email)
	v.checkCond(input.Password != "", "password", "must be provided")
	if v.hasErrors() {
		writeError(w, v.toError(), http.StatusBadRequest)
		return
	}

	u, err := app.storage.getUserByEmail(input.Email)
	if err != nil {
		serverError(w, err)
		return
	}
	if u == nil {
		writeError(w, errors.New("invalid email or password"), http.StatusUnauthorized)
		return
	}
	err = bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(input.Password))
	if err != nil {
		writeError(w, errors.New("invalid email or password"), http.StatusUnauthorized)
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    u.ID,
		"expires_at": expiresAt.Format(time.RFC822),
	})
	signed, err := token.SignedString([]byte(app.config.jwt.secret))
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"expires_at": expiresAt.Format(time.RFC822),
	})
}

func (app *application) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	p, err := app.storage.ensureProfile(u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(u, p))
}

func (app *application) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	var input struct {
		Bio         string `json:"bio"`
		PicturePath string `json:"profile_picture_url"`
	}
	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	p, err := app.storage.ensureProfile(u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	p.Bio = input.Bio
	p.PicturePath = input.PicturePath
	err = app.storage.updateProfile(p)
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(u, p))
}

func profileResponse(u *user, p *userProfile) map[string]any {
	return map[string]any{
		"username":            u.Name,
		"email":               u.Email,
		"bio":                 p.Bio,
		"profile_picture_url": p.PicturePath,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, errors.New("internal server error"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func composeJSONError(err error) string {
	jsonError := map[string]string{
		"error": err.Error(),
	}
	result, err := json.Marshal(jsonError)
	if err != nil {
		log.Println(err)
		return ""
	}
	return string(result)
}

func writeError(w http.ResponseWriter, err error, statusCode int) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	fmt.Fprintln(w, composeJSONError(err))
}

// serverError logs the cause and sends a generic 500 so internals never leak.
func serverError(w http.ResponseWriter, err error) {
	log.Println(err)
	writeError(w, errors.New("internal server error"), http.StatusInternalServerError)
}

func notFound(w http.ResponseWriter) {
	writeError(w, errors.New("the requested resource could not be found"), http.StatusNotFound)
}

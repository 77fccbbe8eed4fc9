package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/asmitpant/tripsplit/eventlogger"
	"github.com/asmitpant/tripsplit/friend"
	"github.com/asmitpant/tripsplit/invite"
	"github.com/asmitpant/tripsplit/middleware"
	"github.com/asmitpant/tripsplit/session"
	"github.com/asmitpant/tripsplit/trip"
	"github.com/asmitpant/tripsplit/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func main() {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "tripsplit"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		printErrorAndExit("database connection", err)
	}
	defer db.Close()

	err = db.Ping()
	if err != nil {
		printErrorAndExit("pinging database", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		printErrorAndExit("setting migration dialect", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		printErrorAndExit("running migrations", err)
	}

	evtlogger := eventlogger.NewSqlEventLogger(db)
	worker := eventlogger.NewWorker(evtlogger, 100)
	worker.Start()
	defer worker.Shutdown()

	userRepo := user.NewRepository(db)
	sessionRepo := session.NewRepository(db)
	tripRepo := trip.NewRepository(db)
	friendRepo := friend.NewRepository(db)
	inviteRepo := invite.NewRepository(db)

	if purged, err := sessionRepo.DeleteExpired(context.Background()); err != nil {
		slog.Warn("purging expired sessions", "error", err)
	} else if purged > 0 {
		slog.Info("purged expired sessions", "count", purged)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(middleware.AuthMiddleware(sessionRepo))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		evt := eventlogger.NewEvent(
			eventlogger.WithType(eventlogger.TypeHealthRequest),
			eventlogger.WithData(map[string]string{"message": "ok"}),
		)
		worker.Log(evt)
		w.Write([]byte("ok"))
	})

	router.Post("/user/register", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		registeredUser, err := userRepo.Register(ctx, req.Email, req.Password)
		if err != nil {
			switch err {
			case user.ErrEmailExists:
				http.Error(w, err.Error(), http.StatusConflict)
			case user.ErrBlankPassword, user.ErrInvalidEmail:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				slog.Error("failed to register user", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		sess, err := sessionRepo.Create(ctx, registeredUser.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		setSessionCookie(w, sess)

		worker.Log(eventlogger.NewEvent(
			eventlogger.WithType(eventlogger.TypeUserRegistered),
			eventlogger.WithData(map[string]string{
				"user_id": registeredUser.ID.String(),
				"email":   registeredUser.Email,
			}),
		))

		writeJSON(w, http.StatusCreated, registeredUser)
	})

	router.Post("/user/login", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		userdb, err := userRepo.GetByEmail(ctx, req.Email)
		if err != nil {
			slog.Error("failed to fetch user", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if userdb == nil {
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return
		}

		if err := userRepo.VerifyPassword(userdb.PasswordHash, req.Password); err != nil {
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return
		}

		sess, err := sessionRepo.Create(ctx, userdb.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		setSessionCookie(w, sess)

		worker.Log(eventlogger.NewEvent(
			eventlogger.WithType(eventlogger.TypeUserLoggedIn),
			eventlogger.WithData(map[string]string{
				"user_id":    userdb.ID.String(),
				"email":      userdb.Email,
				"session_id": sess.ID.String(),
			}),
		))

		writeJSON(w, http.StatusOK, userdb)
	})

	// Protected routes - require authentication
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())

		r.Post("/user/logout", func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err == nil {
				sessionRepo.Delete(r.Context(), cookie.Value)
			}

			http.SetCookie(w, &http.Cookie{
				Name:   session.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/user/profile", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserID(r.Context())

			u, err := userRepo.GetByID(r.Context(), userID)
			if err != nil || u == nil {
				slog.Error("failed to fetch user", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, u)
		})

		r.Put("/user/profile", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserID(r.Context())

			var req struct {
				FullName string `json:"full_name"`
				Username string `json:"username"`
				Bio      string `json:"bio"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			if err := userRepo.UpdateProfile(r.Context(), userID, req.FullName, req.Username, req.Bio); err != nil {
				slog.Error("failed to update profile", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType(eventlogger.TypeProfileUpdated),
				eventlogger.WithData(map[string]string{
					"user_id": userID.String(),
					"name":    req.FullName,
				}),
			))

			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/user/profile/avatar", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserID(r.Context())

			u, err := userRepo.GetByID(r.Context(), userID)
			if err != nil || u == nil {
				slog.Error("failed to fetch user", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("content-type", "image/jpeg")
			w.Write(u.Avatar)
		})

		r.Post("/user/profile/avatar", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserID(r.Context())

			// sets the max memory limit to 10 MB
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				http.Error(w, "Invalid form data", http.StatusBadRequest)
				return
			}
			file, _, err := r.FormFile("avatar")
			if err != nil {
				slog.Error("retrieving form file", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			defer file.Close()

			imgBytes, err := io.ReadAll(file)
			if err != nil {
				slog.Error("reading file", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if err := userRepo.UpdateAvatar(r.Context(), imgBytes, userID); err != nil {
				slog.Error("failed to update avatar", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/users/search", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query().Get("q")
			if len(q) < 2 {
				writeJSON(w, http.StatusOK, []user.User{})
				return
			}

			users, err := userRepo.Search(r.Context(), q, 10)
			if err != nil {
				slog.Error("failed to search users", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, users)
		})

		a := &api{
			users:       userRepo,
			trips:       tripRepo,
			friends:     friendRepo,
			invitations: inviteRepo,
			events:      worker,
		}
		a.routes(r)
	})

	port := getEnv("PORT", "5000")
	slog.Info("server starting", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		printErrorAndExit("server stopped", err)
	}
}

func setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}

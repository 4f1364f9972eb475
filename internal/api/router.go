package api

import (
	"net/http"
	"strings"

	"github.com/threadcast/threadcast/internal/auth"
	"github.com/threadcast/threadcast/internal/campaign"
	"github.com/threadcast/threadcast/internal/comments"
	"github.com/threadcast/threadcast/internal/engage"
	"github.com/threadcast/threadcast/internal/stats"
	"github.com/threadcast/threadcast/internal/store"
	"github.com/threadcast/threadcast/internal/uploader"
	"log/slog"
)

// corsPreflight answers an OPTIONS preflight with the standard headers.
func corsPreflight(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, st *store.Store, controller *campaign.Controller, runner *engage.Runner, tracker *stats.Tracker, pool *comments.Pool, up *uploader.Catbox, authConfig auth.Config, logger *slog.Logger) {
	accountsHandler := NewAccountsHandler(st, logger)
	postsHandler := NewPostsHandler(st, logger)
	settingsHandler := NewSettingsHandler(st, logger)
	campaignHandler := NewCampaignHandler(controller, logger)
	engageHandler := NewEngageHandler(runner, st, logger)
	statsHandler := NewStatsHandler(tracker, logger)
	commentsHandler := NewCommentsHandler(pool, logger)
	uploadHandler := NewUploadHandler(up, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	// Auth middleware
	authMiddleware := auth.Middleware(authConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Account roster routes
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "GET, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				accountsHandler.ListAccounts(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/accounts/" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, PUT, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle /api/accounts/import and /api/accounts/delete
			if r.Method == http.MethodPost && r.URL.Path == "/api/accounts/import" {
				accountsHandler.ImportAccounts(w, r)
				return
			}
			if r.Method == http.MethodPost && r.URL.Path == "/api/accounts/delete" {
				accountsHandler.DeleteAccounts(w, r)
				return
			}

			// Handle /api/accounts/:id
			if r.Method == http.MethodPut {
				accountsHandler.UpdateAccount(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})).ServeHTTP(w, r)
	})

	// Post backlog routes
	mux.HandleFunc("/api/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "GET, POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				postsHandler.ListPosts(w, r)
			case http.MethodPost:
				postsHandler.CreatePost(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/posts/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/posts/" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, PUT, DELETE, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle /api/posts/import
			if r.Method == http.MethodPost && r.URL.Path == "/api/posts/import" {
				postsHandler.ImportPosts(w, r)
				return
			}

			// Handle /api/posts/:id/reset
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reset") {
				postsHandler.ResetPost(w, r)
				return
			}

			// Handle /api/posts/:id
			switch r.Method {
			case http.MethodPut:
				postsHandler.UpdatePost(w, r)
			case http.MethodDelete:
				postsHandler.DeletePost(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Settings routes
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "GET, PUT, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				settingsHandler.GetSettings(w, r)
			case http.MethodPut:
				settingsHandler.UpdateSettings(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Campaign lifecycle routes
	mux.HandleFunc("/api/campaign/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				campaignHandler.StartCampaign(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/campaign/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				campaignHandler.StopCampaign(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Campaign status is public, like /health
	mux.HandleFunc("/api/campaign/status", campaignHandler.CampaignStatus)

	// Engagement routes
	mux.HandleFunc("/api/engage/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				engageHandler.StartEngage(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/engage/start-all", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				engageHandler.StartEngageAll(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/engage/stop-all", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				engageHandler.StopEngageAll(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/engage/stop/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				engageHandler.StopEngage(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/engage/status", engageHandler.EngageStatus)

	// Engagement stats routes
	mux.HandleFunc("/api/stats", statsHandler.GetStats)
	mux.HandleFunc("/api/stats/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				statsHandler.ResetStats(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Comment pool routes
	mux.HandleFunc("/api/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "GET, PUT, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				commentsHandler.GetComments(w, r)
			case http.MethodPut:
				commentsHandler.UpdateComments(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Media upload route
	mux.HandleFunc("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				uploadHandler.UploadMedia(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// CORS preflight fallback
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			corsPreflight(w, "GET, POST, PUT, DELETE, OPTIONS")
			return
		}
		http.NotFound(w, r)
	})
}

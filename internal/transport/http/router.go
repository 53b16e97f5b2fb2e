package http

import (
	"errors"
	"net/http"
	"time"

	"ai-quiz-tutor/internal/app"
	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDeps are the services exposed over HTTP.
type RouterDeps struct {
	Accounts       *app.AccountService
	Quizzes        *app.QuizService
	Results        app.ResultSubmitter
	Tutor          *app.TutorService
	Log            *logger.Logger
	AllowedOrigins []string
}

// NewRouter wires REST and websocket routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(deps.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = deps.AllowedOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := NewAPIHandler(deps.Accounts, deps.Results, deps.Tutor, deps.Log)
	router.POST("/api/signup", api.Signup)
	router.POST("/api/login", api.Login)

	authed := router.Group("/api", requireAuth(deps.Accounts))
	authed.POST("/dashboard", api.Dashboard)
	authed.POST("/result", api.Result)
	authed.POST("/chat", api.Chat)

	ws := NewWSHandler(deps.Quizzes, deps.Accounts, deps.Log)
	router.GET("/ws", gin.WrapF(ws.ServeWS))
	return router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

const emailKey = "email"

func requireAuth(accounts *app.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := accounts.Authenticate(bearerToken(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: domain.ErrUnauthorized.Error()})
			return
		}
		c.Set(emailKey, email)
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return r.URL.Query().Get("token")
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingField), errors.Is(err, domain.ErrEmptyTopic):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrResultSubmissionFailed), errors.Is(err, domain.ErrMalformedAdvice), errors.Is(err, domain.ErrMalformedQuiz):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

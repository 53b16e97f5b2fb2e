package http

import (
	"net/http"

	"ai-quiz-tutor/internal/app"
	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/logger"
	"github.com/gin-gonic/gin"
)

// APIHandler serves the JSON endpoints.
type APIHandler struct {
	accounts *app.AccountService
	results  app.ResultSubmitter
	tutor    *app.TutorService
	log      *logger.Logger
}

func NewAPIHandler(accounts *app.AccountService, results app.ResultSubmitter, tutor *app.TutorService, log *logger.Logger) *APIHandler {
	return &APIHandler{accounts: accounts, results: results, tutor: tutor, log: log.With("handler", "api")}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	User      struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

type resultRequest struct {
	Topic              string   `json:"topic"`
	IncorrectIndices   []int    `json:"incorrectIndices"`
	IncorrectQuestions []string `json:"incorrectQuestions"`
	TotalQuestions     int      `json:"totalQuestions"`
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (h *APIHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if _, err := h.accounts.Signup(c.Request.Context(), req.Name, req.Email, req.Password); err != nil {
		h.fail(c, "signup failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

func (h *APIHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	token, user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "login failed", err)
		return
	}
	var resp loginResponse
	resp.Token = token
	resp.ExpiresIn = int64(h.accounts.TokenTTL().Seconds())
	resp.User.Name = user.Name
	resp.User.Email = user.Email
	c.JSON(http.StatusOK, resp)
}

func (h *APIHandler) Dashboard(c *gin.Context) {
	d, err := h.accounts.Dashboard(c.Request.Context(), c.GetString(emailKey))
	if err != nil {
		h.fail(c, "dashboard failed", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *APIHandler) Result(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	advice, err := h.results.SubmitResult(c.Request.Context(), domain.ResultSubmission{
		Email:            c.GetString(emailKey),
		Topic:            req.Topic,
		IncorrectIndices: req.IncorrectIndices,
		IncorrectPrompts: req.IncorrectQuestions,
		TotalQuestions:   req.TotalQuestions,
	})
	if err != nil {
		h.fail(c, "result failed", err)
		return
	}
	c.JSON(http.StatusOK, advice)
}

func (h *APIHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	answer, err := h.tutor.Ask(c.Request.Context(), c.GetString(emailKey), req.Message, req.Context)
	if err != nil {
		h.fail(c, "chat failed", err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{Response: answer})
}

func (h *APIHandler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, errorBody{Error: err.Error()})
}

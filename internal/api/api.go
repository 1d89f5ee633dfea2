package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
	"github.com/structprep/quizd/internal/filter"
	"github.com/structprep/quizd/internal/quiz"
)

// Catalog enumerates the categories selectable in a filter.
type Catalog interface {
	Categories(ctx context.Context) []string
}

// Comparator provides the community comparison and the caller's own
// archive history for the results view.
type Comparator interface {
	Compare(ctx context.Context, category string) domain.CommunityStats
	OwnHistoryCount(ctx context.Context, identity domain.Identity, category string) int
}

type Config struct {
	Router     gin.IRouter
	Quiz       *quiz.Manager
	Catalog    Catalog
	Stats      Comparator
	AuthSecret string
}

type API struct {
	quiz    *quiz.Manager
	catalog Catalog
	stats   Comparator
}

func New(c Config) *API {
	a := &API{
		quiz:    c.Quiz,
		catalog: c.Catalog,
		stats:   c.Stats,
	}

	v1 := c.Router.Group("/v1")
	v1.Use(identityMiddleware(c.AuthSecret))

	v1.GET("/categories", a.listCategories)
	v1.POST("/runs", a.startRun)
	v1.GET("/runs/:id", a.getRun)
	v1.POST("/runs/:id/answer", a.selectAnswer)
	v1.POST("/runs/:id/skip", a.skip)
	v1.POST("/runs/:id/advance", a.advance)
	v1.POST("/runs/:id/flags", a.flagQuestion)
	v1.GET("/runs/:id/results", a.results)
	v1.DELETE("/runs/:id", a.abortRun)

	return a
}

func (a *API) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories":   a.catalog.Categories(c.Request.Context()),
		"code_sources": filter.CodeSources,
		"difficulties": filter.Difficulties,
	})
}

type startRunRequest struct {
	CodeSource    string `json:"code_source"`
	Category      string `json:"category"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
}

func (a *API) startRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("decode request: %v", err),
		))
		return
	}

	ctx := c.Request.Context()

	fc := filter.New(a.catalog.Categories(ctx))

	// Entry parameters are read once, before the body selection applies.
	if err := fc.ApplyEntryParams(filter.EntryParams{
		Difficulty: c.Query("difficulty"),
		CodeSource: c.Query("code_source"),
		Category:   c.Query("category"),
	}); err != nil {
		abortWithError(c, err)
		return
	}

	if err := applySelection(fc, req); err != nil {
		abortWithError(c, err)
		return
	}

	r, err := a.quiz.StartRun(ctx, fc, callerIdentity(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newRunView(r.Snapshot()))
}

func applySelection(fc *filter.Config, req startRunRequest) error {
	if req.CodeSource != "" {
		if err := fc.SetCodeSource(req.CodeSource); err != nil {
			return err
		}
	}
	if req.Category != "" {
		if err := fc.SetCategory(req.Category); err != nil {
			return err
		}
	}
	if req.Difficulty != "" {
		if err := fc.SetDifficulty(req.Difficulty); err != nil {
			return err
		}
	}
	if req.QuestionCount != 0 {
		if err := fc.SetQuestionCount(req.QuestionCount); err != nil {
			return err
		}
	}

	return nil
}

func (a *API) getRun(c *gin.Context) {
	r, err := a.quiz.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunView(r.Snapshot()))
}

type selectAnswerRequest struct {
	OptionIndex *int `json:"option_index"`
}

func (a *API) selectAnswer(c *gin.Context) {
	var req selectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OptionIndex == nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("option_index is required"),
		))
		return
	}

	r, err := a.quiz.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunView(r.SelectAnswer(*req.OptionIndex)))
}

func (a *API) skip(c *gin.Context) {
	r, err := a.quiz.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunView(r.Skip()))
}

func (a *API) advance(c *gin.Context) {
	r, err := a.quiz.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	snap, err := r.Advance(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunView(snap))
}

type flagRequest struct {
	QuestionID string `json:"question_id"`
}

func (a *API) flagQuestion(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("decode request: %v", err),
		))
		return
	}

	r, err := a.quiz.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	err = r.Flag(req.QuestionID)
	// Re-flagging is informational, not a failure.
	if errors.HasReason(err, errors.ReasonAlreadyFlagged) {
		c.JSON(http.StatusOK, gin.H{
			"flagged":         true,
			"already_flagged": true,
			"message":         "This question has already been flagged for review.",
		})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"flagged": true,
		"message": "This question has been noted for review.",
	})
}

func (a *API) results(c *gin.Context) {
	r, err := a.quiz.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	summary, err := r.Summary()
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	category := summary.FiltersUsed.Category
	cs := a.stats.Compare(ctx, category)
	ownCount := a.stats.OwnHistoryCount(ctx, callerIdentity(c), category)

	c.JSON(http.StatusOK, newResultsView(summary, cs, ownCount))
}

func (a *API) abortRun(c *gin.Context) {
	if err := a.quiz.Abort(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

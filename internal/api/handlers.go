package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/pipeline"
)

const userIDHeader = "X-User-ID"

// userID reads the caller identity set by the upstream auth proxy. An absent
// header means an anonymous caller.
func userID(c echo.Context) (*int64, error) {
	raw := strings.TrimSpace(c.Request().Header.Get(userIDHeader))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+userIDHeader+" header")
	}
	return &id, nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid review id")
	}
	return id, nil
}

func badQuery(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid query parameter: %v", err))
}

func (h *handlers) health(c echo.Context) error {
	checks := map[string]bool{}
	healthy := true
	if h.Health != nil {
		checks, healthy = h.Health.Status()
	}
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": h.now().UTC(),
	})
}

type analyzeRequest struct {
	Text string `json:"text"`
}

func (h *handlers) analyze(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.Analyzer.Analyze(c.Request().Context(), req.Text, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *handlers) submitScrape(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req pipeline.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.UserID = uid

	job, err := h.Jobs.Submit(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Scraping task started",
		"task_id": job.TaskHandle,
		"job_id":  job.ID,
		"status":  job.Status,
	})
}

func (h *handlers) scrapeStatus(c echo.Context) error {
	view, err := h.Jobs.Status(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *handlers) scrapeHistory(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	page, perPage := 1, pipeline.DefaultPerPage
	if err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("per_page", &perPage).
		BindError(); err != nil {
		return badQuery(err)
	}

	out, err := h.Jobs.History(c.Request().Context(), uid, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) listReviews(c echo.Context) error {
	page, perPage := 1, pipeline.DefaultPerPage
	var sentiment, emotion, source string
	if err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("per_page", &perPage).
		String("sentiment", &sentiment).
		String("emotion", &emotion).
		String("source", &source).
		BindError(); err != nil {
		return badQuery(err)
	}
	page = max(page, 1)
	if perPage < 1 {
		perPage = pipeline.DefaultPerPage
	}
	perPage = min(perPage, pipeline.MaxPerPage)

	filter := models.ReviewFilter{
		Sentiment: models.Sentiment(sentiment),
		Emotion:   models.Emotion(emotion),
		Source:    source,
	}
	ctx := c.Request().Context()
	total, err := h.Reviews.CountReviews(ctx, filter)
	if err != nil {
		return err
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	reviews, err := h.Reviews.QueryReviews(ctx, filter)
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"reviews":      reviews,
		"total":        total,
		"pages":        (total + perPage - 1) / perPage,
		"current_page": page,
		"per_page":     perPage,
	})
}

func (h *handlers) getReview(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	review, err := h.Reviews.GetReview(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, review)
}

func (h *handlers) deleteReview(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.Reviews.DeleteReview(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Review deleted successfully"})
}

func (h *handlers) dashboard(c echo.Context) error {
	var days int
	if err := echo.QueryParamsBinder(c).Int("days", &days).BindError(); err != nil {
		return badQuery(err)
	}
	out, err := h.Analytics.Dashboard(c.Request().Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) trends(c echo.Context) error {
	var days int
	var source string
	if err := echo.QueryParamsBinder(c).
		Int("days", &days).
		String("source", &source).
		BindError(); err != nil {
		return badQuery(err)
	}
	out, err := h.Analytics.Trends(c.Request().Context(), days, source)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) comparison(c echo.Context) error {
	var days int
	if err := echo.QueryParamsBinder(c).Int("days", &days).BindError(); err != nil {
		return badQuery(err)
	}
	out, err := h.Analytics.Comparison(c.Request().Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) export(c echo.Context) error {
	var days int
	format := "csv"
	if err := echo.QueryParamsBinder(c).
		Int("days", &days).
		String("format", &format).
		BindError(); err != nil {
		return badQuery(err)
	}
	if format != "csv" {
		return echo.NewHTTPError(http.StatusBadRequest, "Unsupported format")
	}

	var buf bytes.Buffer
	if _, err := h.Analytics.ExportCSV(c.Request().Context(), &buf, days); err != nil {
		return err
	}
	filename := fmt.Sprintf("analytics_%s.csv", h.now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

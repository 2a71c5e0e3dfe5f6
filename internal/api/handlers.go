package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/auth"
	"github.com/david/grant-assistant/internal/composer"
	"github.com/david/grant-assistant/internal/deadlines"
	"github.com/david/grant-assistant/internal/matcher"
	"github.com/david/grant-assistant/internal/models"
)

func bind(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		return apperr.InvalidParameter("malformed request body")
	}
	return nil
}

func (s *Server) handleToken(c echo.Context) error {
	var req auth.TokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := s.auth.IssueToken(req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

type searchResponse struct {
	Results []matcher.Match `json:"results"`
	Count   int             `json:"count"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var q models.SearchQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	matches, err := s.matcher.Search(c.Request().Context(), q)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []matcher.Match{}
	}
	return c.JSON(http.StatusOK, searchResponse{Results: matches, Count: len(matches)})
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, err := s.source.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleCompose(c echo.Context) error {
	var req composer.ComposeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.composer.Compose(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type validateRequest struct {
	Draft        models.ProposalDraft     `json:"draft"`
	Requirements models.DraftRequirements `json:"requirements"`
}

func (s *Server) handleValidate(c echo.Context) error {
	var req validateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	report, err := s.validator.Validate(req.Draft, req.Requirements)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleListDeadlines(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deadlines.List())
}

func (s *Server) handleUpcomingDeadlines(c echo.Context) error {
	days := deadlines.DefaultUpcomingDays
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.InvalidParameter("days must be an integer, got %q", raw)
		}
		days = n
	}
	out, err := s.deadlines.Upcoming(days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetDeadline(c echo.Context) error {
	d, err := s.deadlines.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type addDeadlineRequest struct {
	GrantID       string `json:"grant_id"`
	Deadline      string `json:"deadline_timestamp"`
	NotifyOffsets []int  `json:"notify_offsets"`
}

func (s *Server) handleAddDeadline(c echo.Context) error {
	var req addDeadlineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ts, err := deadlines.ParseTimestamp(req.Deadline)
	if err != nil {
		return err
	}
	d, err := s.deadlines.Add(c.Request().Context(), req.GrantID, ts, req.NotifyOffsets)
	if err != nil {
		return err
	}

	clientID, _ := auth.ClientIDFromContext(c)
	s.log.Info("deadline added", map[string]interface{}{"grant_id": d.GrantID, "client_id": clientID})
	return c.JSON(http.StatusCreated, d)
}

func (s *Server) handleRemoveDeadline(c echo.Context) error {
	if err := s.deadlines.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type computeRequest struct {
	Now string `json:"now,omitempty"`
}

type computeResponse struct {
	ComputedAt    time.Time                `json:"computed_at"`
	Notifications []models.DueNotification `json:"notifications"`
}

// handleComputeNotifications is driven by an external cron. An explicit
// "now" lets operators replay a missed run.
func (s *Server) handleComputeNotifications(c echo.Context) error {
	var req computeRequest
	if c.Request().ContentLength > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	now := s.now().UTC()
	if req.Now != "" {
		ts, err := deadlines.ParseTimestamp(req.Now)
		if err != nil {
			return err
		}
		now = ts
	}
	due, err := s.deadlines.ComputeDueNotifications(c.Request().Context(), now)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, computeResponse{ComputedAt: now, Notifications: due})
}

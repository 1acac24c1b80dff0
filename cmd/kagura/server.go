package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"github.com/kagura-bot/kagura/antispam"
	"github.com/kagura-bot/kagura/events"
	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/moderation"
	"github.com/kagura-bot/kagura/settings"
)

type Config struct {
	Logger     *slog.Logger
	Cases      *moderation.CaseCoordinator
	Reports    *moderation.ReportCoordinator
	Settings   *settings.Store
	Dispatcher *events.Dispatcher
	Scheduler  *moderation.ExpirationScheduler
}

type Server struct {
	echo       *echo.Echo
	httpd      *http.Server
	logger     *slog.Logger
	cases      *moderation.CaseCoordinator
	reports    *moderation.ReportCoordinator
	settings   *settings.Store
	dispatcher *events.Dispatcher
	scheduler  *moderation.ExpirationScheduler
}

func NewServer(config Config) *Server {
	e := echo.New()
	e.HideBanner = true

	srv := &Server{
		echo:       e,
		logger:     config.Logger,
		cases:      config.Cases,
		reports:    config.Reports,
		settings:   config.Settings,
		dispatcher: config.Dispatcher,
		scheduler:  config.Scheduler,
	}
	srv.httpd = &http.Server{
		Handler:        srv.echo,
		ReadTimeout:    time.Minute,
		WriteTimeout:   time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	e.Use(slogecho.New(config.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.handleHealthCheck)
	e.GET("/guilds/:guild/cases", srv.handleFindCases)
	e.GET("/guilds/:guild/cases/:case", srv.handleGetCase)
	e.POST("/guilds/:guild/cases", srv.handleCreateCase)
	e.DELETE("/guilds/:guild/cases/:case", srv.handleDeleteCase)
	e.GET("/guilds/:guild/reports", srv.handleFindReports)
	e.GET("/guilds/:guild/reports/:report", srv.handleGetReport)
	e.GET("/guilds/:guild/settings", srv.handleGetSettings)
	e.PUT("/guilds/:guild/settings", srv.handlePutSettings)
	e.POST("/events/message", srv.handleMessageEvent)

	return srv
}

// RunAPI starts the admin listener and the scheduler, then blocks until an
// exit signal.
func (s *Server) RunAPI(listen string) error {
	s.scheduler.Start()
	s.httpd.Addr = listen

	s.logger.Info("starting admin API", "bind", listen)
	go func() {
		if err := s.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("admin API shutting down unexpectedly", "err", err)
			}
		}
	}()

	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exitSignals
	s.logger.Info("received exit signal", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpd.Shutdown(ctx); err != nil {
		s.logger.Error("admin API shutdown failed", "err", err)
	}
	s.dispatcher.Shutdown()
	s.scheduler.Shutdown()
	return nil
}

func (s *Server) RunMetrics(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, mux)
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
	} else if moderation.UserFacing(err) {
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("admin API error", "path", c.Path(), "err", err)
	}
	c.JSON(code, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFindCases(c echo.Context) error {
	out, err := s.cases.Ledger.FindCases(c.Request().Context(), c.Param("guild"), c.QueryParam("q"), 25)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetCase(c echo.Context) error {
	caseID, err := strconv.ParseInt(c.Param("case"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	out, err := s.cases.GetCase(c.Request().Context(), c.Param("guild"), caseID)
	if err != nil {
		if moderation.UserFacing(err) {
			return echo.NewHTTPError(http.StatusNotFound, "case not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, out)
}

type createCaseRequest struct {
	Action    string `json:"action"`
	TargetID  string `json:"targetId"`
	TargetTag string `json:"targetTag"`
	ModID     string `json:"modId"`
	ModTag    string `json:"modTag"`
	Reason    string `json:"reason"`
	// DurationSec applies to timeouts only.
	DurationSec int64 `json:"durationSec"`
	PurgeDays   int   `json:"purgeDays"`
}

func (s *Server) handleCreateCase(c echo.Context) error {
	var req createCaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	action, ok := models.ActionFromString(req.Action)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
	var mod *moderation.Actor
	if req.ModID != "" {
		mod = &moderation.Actor{ID: req.ModID, Tag: req.ModTag}
	}
	out, err := s.cases.CreateCase(c.Request().Context(), moderation.CreateCaseParams{
		GuildID:   c.Param("guild"),
		Action:    action,
		TargetID:  req.TargetID,
		TargetTag: req.TargetTag,
		Mod:       mod,
		Reason:    req.Reason,
		Duration:  time.Duration(req.DurationSec) * time.Second,
		PurgeDays: req.PurgeDays,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) handleDeleteCase(c echo.Context) error {
	caseID, err := strconv.ParseInt(c.Param("case"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	var mod *moderation.Actor
	if modID := c.QueryParam("modId"); modID != "" {
		mod = &moderation.Actor{ID: modID, Tag: c.QueryParam("modTag")}
	}
	out, err := s.cases.DeleteCase(c.Request().Context(), moderation.DeleteCaseParams{
		GuildID: c.Param("guild"),
		CaseID:  caseID,
		Mod:     mod,
		Reason:  c.QueryParam("reason"),
		Manual:  true,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleFindReports(c echo.Context) error {
	out, err := s.reports.FindReports(c.Request().Context(), c.Param("guild"), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetReport(c echo.Context) error {
	reportID, err := strconv.ParseInt(c.Param("report"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report id")
	}
	out, err := s.reports.GetReport(c.Request().Context(), c.Param("guild"), reportID)
	if err != nil {
		if moderation.UserFacing(err) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSettings(c echo.Context) error {
	out, err := s.settings.Get(c.Request().Context(), c.Param("guild"))
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "guild not configured")
		}
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handlePutSettings(c echo.Context) error {
	var gs models.GuildSettings
	if err := c.Bind(&gs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	gs.GuildID = c.Param("guild")
	if err := s.settings.Upsert(c.Request().Context(), &gs); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &gs)
}

type messageEventRequest struct {
	GuildID      string `json:"guildId"`
	ChannelID    string `json:"channelId"`
	MessageID    string `json:"messageId"`
	AuthorID     string `json:"authorId"`
	AuthorTag    string `json:"authorTag"`
	Content      string `json:"content"`
	MentionCount int    `json:"mentionCount"`
}

func (s *Server) handleMessageEvent(c echo.Context) error {
	var req messageEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	s.dispatcher.Dispatch(events.EventMessageCreate, antispam.Message{
		GuildID:      req.GuildID,
		ChannelID:    req.ChannelID,
		MessageID:    req.MessageID,
		AuthorID:     req.AuthorID,
		AuthorTag:    req.AuthorTag,
		Content:      req.Content,
		MentionCount: req.MentionCount,
	})
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

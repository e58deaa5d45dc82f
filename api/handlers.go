package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"studioboard/board"
	"studioboard/domain"
	"studioboard/quota"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Services, auth Authenticator, logger *log.Logger) {
	e.GET("/api/board", getBoard(svc.Tasks, auth, logger))
	e.GET("/api/board/stream", streamBoard(svc.Streams, auth))

	e.POST("/api/tasks", postTask(svc.Tasks, auth))
	e.PATCH("/api/tasks/:id", patchTask(svc.Tasks, auth))
	e.POST("/api/tasks/:id/status", postTaskStatus(svc.Tasks, auth))
	e.DELETE("/api/tasks/:id", deleteTask(svc.Tasks, auth))
	e.GET("/api/tasks/:id/comments", getComments(svc.Tasks, auth))
	e.POST("/api/tasks/:id/comments", postComment(svc.Tasks, auth))

	e.GET("/api/quotas", getQuotas(svc.Quotas, auth))
	e.PUT("/api/quotas", putQuota(svc.Quotas, auth))
	e.GET("/api/quotas/stats", getQuotaStats(svc.Quotas, svc.Tasks, auth))

	e.GET("/api/catalogs/:kind", getCatalog(svc.Catalogs, auth))
	e.POST("/api/catalogs/:kind", postCatalogEntry(svc.Catalogs, auth))
	e.DELETE("/api/catalogs/:kind/:id", deleteCatalogEntry(svc.Catalogs, auth))

	e.GET("/api/session", getSession(svc.Designers, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// filterFromQuery builds the view projection from the request. The window
// narrows what storage returns; the rest narrows what the caller sees.
func filterFromQuery(c echo.Context) (domain.BoardFilter, domain.Window, []string) {
	r := domain.DateRange{
		Start: strings.TrimSpace(c.QueryParam("start")),
		End:   strings.TrimSpace(c.QueryParam("end")),
	}
	now := time.Now()
	win := domain.SubscriptionWindow(r, now)
	dates := domain.DisplayDates(r, now)

	f := domain.BoardFilter{
		DesignerID: strings.TrimSpace(c.QueryParam("designer")),
		Search:     c.QueryParam("q"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, domain.Status(s))
			}
		}
	}
	return f, win, dates
}

func getBoard(tasks Tasks, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		_, authErr := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		filter, win, dates := filterFromQuery(c)

		fetchStart := time.Now()
		all, fetchErr := tasks.Snapshot(ctx, win)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		visible := domain.Visible(all, filter)
		metrics.SetTasksReturned(len(all), len(visible))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, boardResponse{Tasks: visible, Dates: dates})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var candidate domain.Task
		if err := decodeBody(c, &candidate); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		created, err := tasks.AddTask(c.Request().Context(), sess, candidate)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func patchTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var u domain.TaskUpdate
		if err := decodeBody(c, &u); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		u.ID = c.Param("id")
		if err := tasks.UpdateTask(c.Request().Context(), sess, u); err != nil {
			return writeServiceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postTaskStatus(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req statusRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		err = tasks.UpdateTaskStatus(c.Request().Context(), sess, c.Param("id"), domain.Status(req.Status))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := tasks.DeleteTask(c.Request().Context(), sess, c.Param("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getComments(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		comments, err := tasks.Comments(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, comments)
	}
}

func postComment(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req commentRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		comment, err := tasks.AddComment(c.Request().Context(), sess, c.Param("id"), req.Text)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusCreated, comment)
	}
}

func getQuotas(quotas Quotas, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		list, err := quotas.List(c.Request().Context(), c.QueryParam("scope"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func putQuota(quotas Quotas, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if sess.Role != board.RoleManager {
			return c.NoContent(http.StatusForbidden)
		}
		var edit quota.Edit
		if err := decodeBody(c, &edit); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(edit.Brand) == "" || strings.TrimSpace(edit.Scope) == "" {
			return c.String(http.StatusBadRequest, "brand and scope are required")
		}
		if err := quotas.Upsert(c.Request().Context(), edit); err != nil {
			return writeServiceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getQuotaStats(quotas Quotas, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ctx := c.Request().Context()
		active, err := tasks.Active(ctx)
		if err != nil {
			return writeServiceError(c, err)
		}
		stats, err := quotas.Stats(ctx, c.QueryParam("scope"), active)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func getCatalog(catalogs Catalogs, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		kind := domain.CatalogKind(c.Param("kind"))
		if !domain.KnownCatalog(kind) {
			return c.NoContent(http.StatusNotFound)
		}
		entries, err := catalogs.ListCatalog(c.Request().Context(), kind)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, entries)
	}
}

func postCatalogEntry(catalogs Catalogs, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if sess.Role != board.RoleManager {
			return c.NoContent(http.StatusForbidden)
		}
		kind := domain.CatalogKind(c.Param("kind"))
		if !domain.KnownCatalog(kind) {
			return c.NoContent(http.StatusNotFound)
		}
		var req catalogRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return c.String(http.StatusBadRequest, "name is required")
		}
		entry := domain.CatalogEntry{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := catalogs.InsertCatalogEntry(c.Request().Context(), kind, entry); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusCreated, entry)
	}
}

func deleteCatalogEntry(catalogs Catalogs, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if sess.Role != board.RoleManager {
			return c.NoContent(http.StatusForbidden)
		}
		kind := domain.CatalogKind(c.Param("kind"))
		if !domain.KnownCatalog(kind) {
			return c.NoContent(http.StatusNotFound)
		}
		if err := catalogs.SoftDeleteCatalogEntry(c.Request().Context(), kind, c.Param("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getSession(designers []domain.Designer, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		return c.JSON(http.StatusOK, sessionResponse{Session: sess, Designers: designers})
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, postBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	return dec.Decode(v)
}

func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, board.ErrForbidden):
		return c.NoContent(http.StatusForbidden)
	case errors.Is(err, board.ErrInvalidTask):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return c.NoContent(http.StatusNotFound)
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

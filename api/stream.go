package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"studioboard/domain"
)

// streamBoard serves live board snapshots over SSE. EventSource cannot set
// headers, so a token query parameter stands in for the Authorization
// header. Each event is the full filtered snapshot; clients replace, never
// merge.
func streamBoard(streams Streams, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if _, err := auth.SessionFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		filter, win, dates := filterFromQuery(c)
		ctx := c.Request().Context()
		snapshots, cancel := streams.Subscribe(ctx, win)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case tasks, ok := <-snapshots:
				if !ok {
					return nil
				}
				data, err := sonic.ConfigStd.Marshal(boardResponse{
					Tasks: domain.Visible(tasks, filter),
					Dates: dates,
				})
				if err != nil {
					c.Logger().Error(err)
					return err
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return err
				}
				if _, err := c.Response().Write(data); err != nil {
					return err
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return err
				}
				flusher.Flush()
			}
		}
	}
}

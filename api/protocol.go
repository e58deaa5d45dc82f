package api

import (
	"studioboard/board"
	"studioboard/domain"
)

const postBodyMaxSize = 64 * 1024 // 64 KiB

// GET /api/board response body
type boardResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Dates []string      `json:"dates"`
}

// POST /api/tasks/:id/status request body
type statusRequest struct {
	Status string `json:"status"`
}

// POST /api/tasks/:id/comments request body
type commentRequest struct {
	Text string `json:"text"`
}

// POST /api/catalogs/:kind request body
type catalogRequest struct {
	Name string `json:"name"`
}

// GET /api/session response body
type sessionResponse struct {
	board.Session
	Designers []domain.Designer `json:"designers"`
}

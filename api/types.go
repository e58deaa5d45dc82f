package api

import (
	"context"

	"studioboard/board"
	"studioboard/domain"
	"studioboard/quota"
)

// Tasks is the board mutation surface handlers drive.
type Tasks interface {
	Snapshot(ctx context.Context, w domain.Window) ([]domain.Task, error)
	Active(ctx context.Context) ([]domain.Task, error)
	AddTask(ctx context.Context, sess board.Session, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, sess board.Session, u domain.TaskUpdate) error
	UpdateTaskStatus(ctx context.Context, sess board.Session, id string, status domain.Status) error
	DeleteTask(ctx context.Context, sess board.Session, id string) error
	AddComment(ctx context.Context, sess board.Session, taskID, text string) (domain.Comment, error)
	Comments(ctx context.Context, taskID string) ([]domain.Comment, error)
}

// Quotas exposes the brand aggregates.
type Quotas interface {
	List(ctx context.Context, scope string) ([]domain.BrandQuota, error)
	Upsert(ctx context.Context, e quota.Edit) error
	Stats(ctx context.Context, scope string, tasks []domain.Task) ([]domain.BrandStat, error)
}

// Catalogs manages the brand/creative-type/scope name lists.
type Catalogs interface {
	ListCatalog(ctx context.Context, kind domain.CatalogKind) ([]domain.CatalogEntry, error)
	InsertCatalogEntry(ctx context.Context, kind domain.CatalogKind, e domain.CatalogEntry) error
	SoftDeleteCatalogEntry(ctx context.Context, kind domain.CatalogKind, id string) error
}

// Streams opens live snapshot subscriptions for the SSE endpoint.
type Streams interface {
	Subscribe(ctx context.Context, win domain.Window) (<-chan []domain.Task, context.CancelFunc)
}

// Authenticator is implemented by types able to turn an Authorization
// header into a session.
type Authenticator interface {
	SessionFromAuthHeader(string) (board.Session, error)
}

// Services bundles the backends Register wires handlers to.
type Services struct {
	Tasks     Tasks
	Quotas    Quotas
	Catalogs  Catalogs
	Streams   Streams
	Designers []domain.Designer
}

package storage

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"studioboard/domain"
)

type commentEntity struct {
	aztables.Entity
	Text         string `json:"Text"`
	Author       string `json:"Author"`
	AuthorAvatar string `json:"AuthorAvatar"`
	CreatedAt    string `json:"CreatedAt"`
}

// InsertComment appends a comment row keyed (taskID, commentID). A plain
// insert is an atomic append: concurrent commenters never read-modify-write
// a shared array, so no update can be lost.
func (s *Storage) InsertComment(ctx context.Context, c domain.Comment) error {
	ent := commentEntity{
		Entity:       aztables.Entity{PartitionKey: c.TaskID, RowKey: c.ID},
		Text:         c.Text,
		Author:       c.Author,
		AuthorAvatar: c.AuthorAvatar,
		CreatedAt:    c.CreatedAt,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.commentTable.AddEntity(ctx, payload, nil)
	return err
}

// ListComments retrieves a task's comments, oldest first.
func (s *Storage) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	filter := "PartitionKey eq '" + quoteFilterValue(taskID) + "'"
	pager := s.commentTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	comments := []domain.Comment{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent commentEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			comments = append(comments, domain.Comment{
				ID:           ent.RowKey,
				TaskID:       ent.PartitionKey,
				Text:         ent.Text,
				Author:       ent.Author,
				AuthorAvatar: ent.AuthorAvatar,
				CreatedAt:    ent.CreatedAt,
			})
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt < comments[j].CreatedAt })
	return comments, nil
}

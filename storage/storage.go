package storage

import (
	"context"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"studioboard/domain"
)

// Tables groups the table and queue names a Storage binds to.
type Tables struct {
	Tasks    string
	Quotas   string
	Catalogs string
	Comments string
	Changes  string
}

// Storage provides access to the underlying document store: four Azure
// tables plus the change-feed queue.
type Storage struct {
	taskTable    *aztables.Client
	quotaTable   *aztables.Client
	catalogTable *aztables.Client
	commentTable *aztables.Client
	changeQueue  *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	cq, err := azqueue.NewQueueClientFromConnectionString(connStr, tables.Changes, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:    svc.NewClient(tables.Tasks),
		quotaTable:   svc.NewClient(tables.Quotas),
		catalogTable: svc.NewClient(tables.Catalogs),
		commentTable: svc.NewClient(tables.Comments),
		changeQueue:  cq,
	}, nil
}

// EnqueueChange appends a change event to the durable feed consumed by the
// notify dispatcher.
func (s *Storage) EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error {
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.changeQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// DequeueChange retrieves a single change-feed message, or nil when the
// queue is empty.
func (s *Storage) DequeueChange(ctx context.Context) (*azqueue.DequeuedMessage, error) {
	resp, err := s.changeQueue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return resp.Messages[0], nil
}

// DeleteChange removes a processed message from the feed.
func (s *Storage) DeleteChange(ctx context.Context, id, receipt string) error {
	_, err := s.changeQueue.DeleteMessage(ctx, id, receipt, nil)
	return err
}

// quoteFilterValue escapes single quotes for use inside an OData filter.
func quoteFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

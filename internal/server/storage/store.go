package storage

import (
	"context"
	"errors"

	"netsift/pkg/model"
)

var ErrNotFound = errors.New("报告不存在")

type Store interface {
	Insert(ctx context.Context, rep *model.Report) error
	Get(ctx context.Context, id string) (*model.Report, error)
	QueryByIP(ctx context.Context, ip string, limit int) ([]model.ReportSummary, error)
	Close() error
}

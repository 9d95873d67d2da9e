package handler

import (
	"context"
	"errors"

	"github.com/hitoshi/timecard/internal/auth"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/stats"
	"github.com/hitoshi/timecard/internal/user"
	"github.com/hitoshi/timecard/internal/worksession"
)

// DisplayZoneAdapter は user.Service を ZoneResolver に適合させるアダプタ。
// ユーザーが見つからない場合はエラーにせず、UTC（空のゾーンID）で表示する。
type DisplayZoneAdapter struct {
	svc *user.Service
}

// NewDisplayZoneAdapter はDisplayZoneAdapterを生成する。
func NewDisplayZoneAdapter(svc *user.Service) *DisplayZoneAdapter {
	return &DisplayZoneAdapter{svc: svc}
}

// DisplayZone は閲覧者の表示タイムゾーンIDを返す。
func (a *DisplayZoneAdapter) DisplayZone(ctx context.Context, userID string) (string, error) {
	zone, err := a.svc.DisplayZone(ctx, userID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserNotFound {
			return "", nil
		}
		return "", err
	}
	return zone, nil
}

// --- compile-time interface checks ---

var _ ZoneResolver = (*DisplayZoneAdapter)(nil)
var _ SessionServiceInterface = (*worksession.Service)(nil)
var _ StatsServiceInterface = (*stats.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ AuthServiceInterface = (*auth.Service)(nil)

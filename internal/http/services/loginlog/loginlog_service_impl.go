package loginlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/metrics"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

var csvHeader = []string{
	"ID", "用户ID", "用户名", "钉钉用户ID", "登录IP",
	"登录类型", "状态", "错误信息", "企业ID", "登录时间",
}

type loginLogService struct {
	attempts repository.LoginAttemptRepository
	loc      *time.Location
	now      func() time.Time
}

// NewService crea el servicio de auditoría.
func NewService(d Deps) Service {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &loginLogService{attempts: d.Attempts, loc: loc, now: time.Now}
}

func (s *loginLogService) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("loginlog"),
		logger.Op(op),
	)
}

func (s *loginLogService) Record(ctx context.Context, a *repository.LoginAttempt, cause error) error {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = s.now().UTC()
	}
	a.UserAgent = truncateRunes(a.UserAgent, MaxUserAgentRunes)

	reason := ""
	if cause != nil {
		a.Outcome = types.OutcomeFailed
		reason = autherr.Classify(cause)
		if a.FailureDetail == "" {
			a.FailureDetail = cause.Error()
		}
	} else if a.Outcome != types.OutcomeFailed {
		a.Outcome = types.OutcomeSuccess
	}
	metrics.LoginAttempts.WithLabelValues(string(a.Method), string(a.Outcome), reason).Inc()

	if err := s.attempts.Append(ctx, a); err != nil {
		s.log(ctx, "Record").Error("append login attempt failed",
			logger.LoginMethod(string(a.Method)), logger.Outcome(string(a.Outcome)), logger.Err(err))
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (s *loginLogService) List(ctx context.Context, q Query) (*Page, error) {
	page, perPage := normalizePaging(q.Page, q.PerPage)
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	f.Limit = perPage
	f.Offset = (page - 1) * perPage

	rows, total, err := s.attempts.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, itemFrom(r))
	}
	return &Page{
		Items: items,
		Meta: Meta{
			Total:      total,
			Page:       page,
			PerPage:    perPage,
			TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
		},
	}, nil
}

func (s *loginLogService) Export(ctx context.Context, w io.Writer, q Query) (int, error) {
	f, err := s.filter(q)
	if err != nil {
		return 0, err
	}
	rows, _, err := s.attempts.List(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("list attempts: %w", err)
	}

	if _, err := io.WriteString(w, "\xEF\xBB\xBF"); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.ID, 10),
			r.UserID,
			r.Username,
			r.ProviderUserID,
			r.SourceIP,
			methodLabel(r.Method),
			outcomeLabel(r.Outcome),
			r.FailureDetail,
			r.OrganizationID,
			r.OccurredAt.In(s.loc).Format(TimeLayout),
		}
		if err := cw.Write(rec); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	s.log(ctx, "Export").Info("login logs exported", logger.Int("rows", len(rows)))
	return len(rows), nil
}

func (s *loginLogService) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := s.attempts.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup attempts: %w", err)
	}
	s.log(ctx, "Cleanup").Info("old login logs deleted",
		logger.Int("retention_days", days), logger.Count(n))
	return n, nil
}

// ─── helpers ───

func normalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if perPage < MinPerPage {
		perPage = MinPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

func (s *loginLogService) filter(q Query) (repository.AttemptFilter, error) {
	var f repository.AttemptFilter
	if o := types.LoginOutcome(strings.ToLower(strings.TrimSpace(q.Status))); o.Valid() {
		f.Outcome = o
	}
	f.Search = strings.TrimSpace(q.Search)

	if d := strings.TrimSpace(q.StartDate); d != "" {
		t, err := time.ParseInLocation(dateLayout, d, s.loc)
		if err != nil {
			return f, fmt.Errorf("%w: startDate %q", repository.ErrInvalidInput, d)
		}
		t = t.UTC()
		f.Start = &t
	}
	if d := strings.TrimSpace(q.EndDate); d != "" {
		t, err := time.ParseInLocation(dateLayout, d, s.loc)
		if err != nil {
			return f, fmt.Errorf("%w: endDate %q", repository.ErrInvalidInput, d)
		}
		t = t.Add(24*time.Hour - time.Nanosecond).UTC()
		f.End = &t
	}
	return f, nil
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

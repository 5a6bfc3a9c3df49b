package loginlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/autherr"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store/storetest"
)

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*loginLogService, store.DataAccessLayer) {
	t.Helper()
	dal := storetest.Open(t)
	svc := NewService(Deps{Attempts: dal.Attempts()}).(*loginLogService)
	svc.now = func() time.Time { return baseTime }
	return svc, dal
}

func record(t *testing.T, svc Service, a repository.LoginAttempt, cause error) {
	t.Helper()
	require.NoError(t, svc.Record(context.Background(), &a, cause))
}

func TestRecord_ClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	svc, dal := newService(t)

	record(t, svc, repository.LoginAttempt{
		ProviderUserID: "u1",
		Method:         types.LoginMethodScan,
		UserAgent:      strings.Repeat("浏", 700),
	}, fmt.Errorf("%w: no local account", autherr.ErrRegistrationDisabled))

	rows, total, err := dal.Attempts().List(ctx, repository.AttemptFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, types.OutcomeFailed, rows[0].Outcome)
	assert.Equal(t, "registration disabled: no local account", rows[0].FailureDetail)
	assert.Len(t, []rune(rows[0].UserAgent), MaxUserAgentRunes)
	assert.True(t, rows[0].OccurredAt.Equal(baseTime))
}

func TestRecord_SuccessDefaultsOutcome(t *testing.T) {
	ctx := context.Background()
	svc, dal := newService(t)

	record(t, svc, repository.LoginAttempt{ProviderUserID: "u1", Method: types.LoginMethodH5}, nil)

	rows, _, err := dal.Attempts().List(ctx, repository.AttemptFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.OutcomeSuccess, rows[0].Outcome)
	assert.Empty(t, rows[0].FailureDetail)
}

func TestList_PagingAndFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for i := 0; i < 25; i++ {
		var cause error
		if i%5 == 0 {
			cause = autherr.ErrCsrfStateMismatch
		}
		record(t, svc, repository.LoginAttempt{
			ProviderUserID: fmt.Sprintf("u%02d", i),
			SourceIP:       "10.0.0.1",
			Method:         types.LoginMethodScan,
			OccurredAt:     baseTime.Add(-time.Duration(i) * 24 * time.Hour),
		}, cause)
	}

	page, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, page.Items, DefaultPerPage)
	assert.EqualValues(t, 25, page.Meta.Total)
	assert.Equal(t, 2, page.Meta.TotalPages)
	assert.Equal(t, "u00", page.Items[0].ProviderUserID, "newest first")

	page, err = svc.List(ctx, Query{Page: 3, PerPage: 1})
	require.NoError(t, err)
	assert.Equal(t, MinPerPage, page.Meta.PerPage)
	assert.Equal(t, 3, page.Meta.TotalPages)
	assert.Len(t, page.Items, 5)

	page, err = svc.List(ctx, Query{PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, page.Meta.PerPage)

	page, err = svc.List(ctx, Query{Status: "failed"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Meta.Total)

	// 2024-03-08..2024-03-10 inclusive: u00, u01, u02.
	page, err = svc.List(ctx, Query{StartDate: "2024-03-08", EndDate: "2024-03-10"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Meta.Total)

	page, err = svc.List(ctx, Query{Search: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 10, page.Meta.Total)

	_, err = svc.List(ctx, Query{StartDate: "10/03/2024"})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestExport_CSV(t *testing.T) {
	ctx := context.Background()
	svc, dal := newService(t)

	u := &repository.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, dal.Users().Create(ctx, u))

	record(t, svc, repository.LoginAttempt{
		UserID: u.ID, ProviderUserID: "u1", SourceIP: "1.2.3.4",
		Method: types.LoginMethodH5, OrganizationID: "corpA",
		OccurredAt: baseTime,
	}, nil)
	record(t, svc, repository.LoginAttempt{
		ProviderUserID: "u2", Method: types.LoginMethodScan,
		FailureDetail: `provider said "no", twice`,
		OccurredAt:    baseTime.Add(-time.Hour),
	}, errors.New("ignored"))

	var buf bytes.Buffer
	n, err := svc.Export(ctx, &buf, Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte("\xEF\xBB\xBF")))

	recs, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, csvHeader, recs[0])

	assert.Equal(t, []string{
		recs[1][0], u.ID, "alice", "u1", "1.2.3.4", "H5免登", "成功", "", "corpA", "2024-03-10 12:00:00",
	}, recs[1])
	assert.Equal(t, "扫码登录", recs[2][5])
	assert.Equal(t, "失败", recs[2][6])
	assert.Equal(t, `provider said "no", twice`, recs[2][7])
	assert.Contains(t, buf.String(), `"provider said ""no"", twice"`)
}

func TestCleanup_StrictCutoffAndIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, dal := newService(t)

	cutoff := baseTime.Add(-30 * 24 * time.Hour)
	for _, at := range []time.Time{
		cutoff.Add(-time.Second), // viejo
		cutoff,                   // justo en el límite: se conserva
		cutoff.Add(time.Second),
		baseTime,
	} {
		record(t, svc, repository.LoginAttempt{ProviderUserID: "u", Method: types.LoginMethodScan, OccurredAt: at}, nil)
	}

	n, err := svc.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = svc.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, total, err := dal.Attempts().List(ctx, repository.AttemptFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	n, err = svc.Cleanup(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeperRunOnce(t *testing.T) {
	ctx := context.Background()
	svc, dal := newService(t)
	record(t, svc, repository.LoginAttempt{
		ProviderUserID: "u", Method: types.LoginMethodScan,
		OccurredAt: baseTime.Add(-48 * time.Hour),
	}, nil)

	NewSweeper(svc, func(context.Context) (int, error) { return 1, nil }, time.Hour).RunOnce(ctx)

	_, total, err := dal.Attempts().List(ctx, repository.AttemptFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

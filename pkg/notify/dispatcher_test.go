package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/grantfinder/pkg/adapters"
	"github.com/codeready-toolchain/grantfinder/pkg/breaker"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

type fakeEmailSender struct {
	calls []adapters.EmailRequest
	err   error
}

func (f *fakeEmailSender) Call(_ context.Context, req adapters.EmailRequest) (adapters.EmailResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return adapters.EmailResponse{}, f.err
	}
	return adapters.EmailResponse{MessageID: "test-1"}, nil
}

func newTestDispatcher(t *testing.T, email *fakeEmailSender, to string) *Dispatcher {
	t.Helper()
	cb := breaker.New(breaker.EmailDefaults(), nil)
	recipients := func(_ context.Context, _ uuid.UUID) (string, error) { return to, nil }
	return New(email, cb, nil, recipients)
}

func TestDispatchRunResult_SendsEmail(t *testing.T) {
	email := &fakeEmailSender{}
	d := newTestDispatcher(t, email, "user@example.com")

	run := &store.SearchRun{
		ID:              uuid.New(),
		Status:          store.RunSuccess,
		GrantsFound:     3,
		SourcesSearched: 4,
	}

	d.DispatchRunResult(context.Background(), uuid.New(), run)

	require.Len(t, email.calls, 1)
	assert.Equal(t, "user@example.com", email.calls[0].To)
	assert.Contains(t, email.calls[0].Subject, "3 grants found")
}

func TestDispatchRunResult_NoRecipient_SkipsSend(t *testing.T) {
	email := &fakeEmailSender{}
	cb := breaker.New(breaker.EmailDefaults(), nil)
	recipients := func(_ context.Context, _ uuid.UUID) (string, error) { return "", nil }
	d := New(email, cb, nil, recipients)

	run := &store.SearchRun{ID: uuid.New(), Status: store.RunSuccess}
	d.DispatchRunResult(context.Background(), uuid.New(), run)

	assert.Empty(t, email.calls)
}

func TestDispatchRunResult_FailedRunDoesNotPanicWithNilOps(t *testing.T) {
	email := &fakeEmailSender{}
	d := newTestDispatcher(t, email, "user@example.com")

	run := &store.SearchRun{ID: uuid.New(), Status: store.RunFailed, ErrorMessage: "all chunks failed"}
	assert.NotPanics(t, func() {
		d.DispatchRunResult(context.Background(), uuid.New(), run)
	})
	require.Len(t, email.calls, 1)
}

func TestDispatchRunResult_EmailFailureIsSwallowed(t *testing.T) {
	email := &fakeEmailSender{err: assert.AnError}
	d := newTestDispatcher(t, email, "user@example.com")

	run := &store.SearchRun{ID: uuid.New(), Status: store.RunPartial, GrantsFound: 1}
	assert.NotPanics(t, func() {
		d.DispatchRunResult(context.Background(), uuid.New(), run)
	})
}

func TestTopGrants(t *testing.T) {
	grants := []*store.Grant{
		{Title: "low", Scores: store.ScoreVector{Composite: 0.2}},
		{Title: "high", Scores: store.ScoreVector{Composite: 0.9}},
		{Title: "mid", Scores: store.ScoreVector{Composite: 0.5}},
	}

	top := TopGrants(grants, 2)

	require.Len(t, top, 2)
	assert.Equal(t, "high", top[0].Title)
	assert.Equal(t, "mid", top[1].Title)
}

func TestScoreBandCounts(t *testing.T) {
	grants := []*store.Grant{
		{Scores: store.ScoreVector{Composite: 0.9}},
		{Scores: store.ScoreVector{Composite: 0.6}},
		{Scores: store.ScoreVector{Composite: 0.1}},
	}

	counts := ScoreBandCounts(grants)

	assert.Equal(t, 1, counts["high (>=0.75)"])
	assert.Equal(t, 1, counts["medium (0.5-0.75)"])
	assert.Equal(t, 1, counts["low (<0.5)"])
}

func TestWeeklyDigest_SendsAggregatedEmail(t *testing.T) {
	email := &fakeEmailSender{}
	d := newTestDispatcher(t, email, "user@example.com")

	grants := []*store.Grant{
		{Title: "Grant A", Funder: "Acme Foundation", Scores: store.ScoreVector{Composite: 0.8}},
		{Title: "Grant B", Funder: "Beta Trust", Scores: store.ScoreVector{Composite: 0.4}},
	}

	d.WeeklyDigest(context.Background(), uuid.New(), grants, time.Now().Add(-7*24*time.Hour))

	require.Len(t, email.calls, 1)
	assert.Contains(t, email.calls[0].Subject, "2 new opportunities")
	assert.Contains(t, email.calls[0].HTMLBody, "Grant A")
}

func TestWeeklyDigest_NoGrants_SkipsSend(t *testing.T) {
	email := &fakeEmailSender{}
	d := newTestDispatcher(t, email, "user@example.com")

	d.WeeklyDigest(context.Background(), uuid.New(), nil, time.Now())

	assert.Empty(t, email.calls)
}

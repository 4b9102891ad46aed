package audit

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
)

type stubRepo struct {
	inserted   []Entry
	windowRows []Entry
	lastOffset int
	lastLimit  int
}

func (r *stubRepo) Insert(_ context.Context, entry Entry) error {
	r.inserted = append(r.inserted, entry)
	return nil
}

func (r *stubRepo) Window(_ context.Context, _ TimelineFilters, offset, limit int) ([]Entry, error) {
	r.lastOffset = offset
	r.lastLimit = limit
	if limit < len(r.windowRows) {
		return r.windowRows[:limit], nil
	}
	return r.windowRows, nil
}

func TestRecordMapsEventToEntry(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	err := svc.Record(context.Background(), authz.AuditEvent{
		PrincipalID: 7,
		SocieteID:   "acier-nord",
		Route:       "PUT /societes/acier-nord/users/7",
		Outcome:     string(authz.StateDenied),
		Reason:      "insufficient role",
		Timestamp:   ts,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
	entry := repo.inserted[0]
	if entry.PrincipalID != 7 || entry.SocieteID != "acier-nord" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if !entry.OccurredAt.Equal(ts) {
		t.Fatalf("timestamp not preserved: %v", entry.OccurredAt)
	}
}

func TestTimelinePagingDetectsNextPage(t *testing.T) {
	rows := make([]Entry, 21)
	for i := range rows {
		rows[i] = Entry{ID: int64(i + 1)}
	}
	repo := &stubRepo{windowRows: rows}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 20 {
		t.Fatalf("expected trimmed page of 20, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected next page, got %+v", result.Paging)
	}
	if repo.lastLimit != 21 {
		t.Fatalf("expected limit of pageSize+1, got %d", repo.lastLimit)
	}
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != maxPageSize+1 {
		t.Fatalf("expected clamped limit %d, got %d", maxPageSize+1, repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected first page offset, got %d", repo.lastOffset)
	}
}

func TestTaskHandlerPersistsEvent(t *testing.T) {
	repo := &stubRepo{}
	handler := NewTaskHandler(NewService(repo), nil)

	task, err := authz.NewAuditTask(authz.AuditEvent{
		PrincipalID: 7,
		SocieteID:   "acier-nord",
		Route:       "POST /permissions/search",
		Outcome:     string(authz.StateAudited),
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
}

func TestTaskHandlerDropsMalformedPayload(t *testing.T) {
	repo := &stubRepo{}
	handler := NewTaskHandler(NewService(repo), nil)

	task := asynq.NewTask(authz.TaskAuthzAudit, []byte("{not json"))
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("malformed payloads must not be retried: %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Fatal("malformed payload must not be persisted")
	}
}

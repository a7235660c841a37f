package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/dispatch"
	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/provider"
	"github.com/notifyhub/lotdispatch/internal/ratelimiter"
	"github.com/notifyhub/lotdispatch/internal/repository"
)

// fakeProvider records every call. create_lot answers with lotID unless a
// failure is configured for the op.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []provider.Request
	lotID   string
	failOps map[string]error
	// failNth fails the n-th call (1-based) of the given op.
	failNth map[string]int
	panicOn string
	counts  map[string]int
	// onCall runs before a request is recorded, outside the lock.
	onCall func(op string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		lotID:   "77",
		failOps: map[string]error{},
		failNth: map[string]int{},
		counts:  map[string]int{},
	}
}

func (f *fakeProvider) Post(ctx context.Context, r provider.Request) (*provider.Response, error) {
	// A cancelled request never reaches the provider.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.onCall != nil {
		f.onCall(r.Op)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r)
	f.counts[r.Op]++

	if f.panicOn == r.Op {
		panic("provider exploded")
	}
	if err := f.failOps[r.Op]; err != nil {
		return nil, err
	}
	if n := f.failNth[r.Op]; n > 0 && f.counts[r.Op] == n {
		return nil, &provider.Error{Op: r.Op, StatusCode: 500, Preview: "boom"}
	}
	if r.Op == "create_lot" {
		return &provider.Response{StatusCode: 200, JSON: map[string]any{"idLot": f.lotID}}, nil
	}
	return &provider.Response{StatusCode: 200}, nil
}

func (f *fakeProvider) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

func (f *fakeProvider) callsOf(op string) []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []provider.Request
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	store    *repository.MockQueueRepository
	contacts *repository.MockContactRepository
	prov     *fakeProvider
	d        *dispatch.Dispatcher
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newFixture(opts ...dispatch.Option) *fixture {
	f := &fixture{
		store:    repository.NewMockQueueRepository(),
		contacts: repository.NewMockContactRepository(),
		prov:     newFakeProvider(),
	}
	opts = append([]dispatch.Option{dispatch.WithClock(func() time.Time { return fixedNow })}, opts...)
	f.d = dispatch.NewDispatcher(f.store, f.contacts, f.prov, zap.NewNop(), opts...)
	return f
}

// enqueue stores one item per recipient under cfg and returns the hash.
func (f *fixture) enqueue(t *testing.T, cfg domain.ActionConfig, retryCount int, recipients ...domain.Recipient) string {
	t.Helper()
	snap := domain.BuildSnapshot(cfg)
	hash, err := snap.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	for _, r := range recipients {
		payload, _ := json.Marshal(r.Payload())
		f.store.Put(domain.QueueItem{
			Payload:        payload,
			ConfigHash:     hash,
			ConfigSnapshot: raw,
			RetryCount:     retryCount,
		})
	}
	return hash
}

func phoneRecipient(id string) domain.Recipient {
	return domain.Recipient{ID: id, Tokens: map[string]any{"areaCode": "11", "phone": "99999" + id}}
}

func messagesConfig(batchSize int) domain.ActionConfig {
	return domain.ActionConfig{
		"url":        "https://provider.test/",
		"batch_size": batchSize,
		"flow":       "messages_batch",
		"text":       "Hi {{first_name}}",
		"variables":  []any{map[string]any{"key": "city", "value": "{{city}}"}},
		"name":       "spring",
	}
}

func assertOps(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
}

func TestProcessPending_MessagesLotInChunks(t *testing.T) {
	f := newFixture()
	f.enqueue(t, messagesConfig(2), 0, phoneRecipient("1"), phoneRecipient("2"), phoneRecipient("3"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != (domain.Report{Eligible: 3, Processed: 3, Scheduled: 0}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	assertOps(t, f.prov.ops(), "create_lot", "add_to_lot", "add_to_lot", "finish_lot")
	if f.store.Len() != 0 {
		t.Fatalf("expected queue drained, %d left", f.store.Len())
	}

	adds := f.prov.callsOf("add_to_lot")
	if adds[0].URL != "https://provider.test/api/Lot/AddMessageToLot/77" {
		t.Fatalf("unexpected add url %q", adds[0].URL)
	}
	first := adds[0].Body.([]map[string]any)
	if len(first) != 2 {
		t.Fatalf("expected first chunk of 2, got %d", len(first))
	}
	if first[0]["phone"] != "999991" || first[1]["phone"] != "999992" {
		t.Fatalf("expected messages in insertion order, got %v, %v", first[0]["phone"], first[1]["phone"])
	}
	if n := len(adds[1].Body.([]map[string]any)); n != 1 {
		t.Fatalf("expected second chunk of 1, got %d", n)
	}
	if fin := f.prov.callsOf("finish_lot")[0].URL; fin != "https://provider.test/api/Lot/FinishLot/77" {
		t.Fatalf("unexpected finish url %q", fin)
	}
}

func TestProcessPending_ChunkCount(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		items     int
		wantAdds  int
	}{
		{"exact multiple", 2, 4, 2},
		{"remainder", 3, 7, 3},
		{"single chunk", 50, 5, 1},
		{"zero clamps to one", 0, 3, 3},
		{"negative clamps to one", -4, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			var rs []domain.Recipient
			for i := 0; i < tt.items; i++ {
				rs = append(rs, phoneRecipient(string(rune('a'+i))))
			}
			f.enqueue(t, messagesConfig(tt.batchSize), 0, rs...)

			if _, err := f.d.ProcessPending(context.Background(), ""); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(f.prov.callsOf("add_to_lot")); got != tt.wantAdds {
				t.Fatalf("expected %d add calls, got %d", tt.wantAdds, got)
			}
		})
	}
}

func TestProcessPending_SubstitutesProfileAndPayloadTokens(t *testing.T) {
	f := newFixture()
	_ = f.contacts.UpsertProfile(context.Background(), "1", map[string]any{"first_name": "Ana", "city": "Lima"})
	f.enqueue(t, messagesConfig(10), 0, phoneRecipient("1"), phoneRecipient("2"))

	if _, err := f.d.ProcessPending(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := f.prov.callsOf("add_to_lot")[0].Body.([]map[string]any)
	if msgs[0]["text"] != "Hi Ana" {
		t.Fatalf("expected substituted text, got %v", msgs[0]["text"])
	}
	vars := msgs[0]["variables"].([]any)
	if v := vars[0].(map[string]any)["value"]; v != "Lima" {
		t.Fatalf("expected substituted variable, got %v", v)
	}
	if msgs[0]["phone"] != "999991" {
		t.Fatalf("expected payload phone, got %v", msgs[0]["phone"])
	}
	if _, leaked := msgs[0][domain.RecipientIDKey]; leaked {
		t.Fatal("recipient marker must not reach the provider")
	}
	// Recipient 2 has no contact row: tokens stay as written.
	if msgs[1]["text"] != "Hi {{first_name}}" {
		t.Fatalf("expected untouched text, got %v", msgs[1]["text"])
	}
}

func TestProcessPending_CreateLotBody(t *testing.T) {
	f := newFixture()
	cfg := messagesConfig(10)
	cfg["ServiceType"] = 2
	cfg["idQuotaSettings"] = "15"
	f.enqueue(t, cfg, 0, phoneRecipient("1"))

	if _, err := f.d.ProcessPending(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := f.prov.callsOf("create_lot")[0].Body.(map[string]any)
	if body["ServiceType"] != 2 || body["idQuotaSettings"] != 15 || body["name"] != "spring" {
		t.Fatalf("unexpected create body %v", body)
	}
	if body["startDate"] != "2024-05-06T07:08:09.000Z" || body["endDate"] != "2024-05-06T07:08:09.000Z" {
		t.Fatalf("expected dates to default to now, got %v / %v", body["startDate"], body["endDate"])
	}
	if _, ok := body["idBookBusinessSendGroup"]; ok {
		t.Fatal("send group must be omitted when not positive")
	}
}

func TestProcessPending_CreateLotFailureReschedules(t *testing.T) {
	f := newFixture()
	f.prov.failOps["create_lot"] = errors.New("connection refused")
	f.enqueue(t, messagesConfig(10), 0, phoneRecipient("1"), phoneRecipient("2"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != (domain.Report{Eligible: 2, Processed: 0, Scheduled: 2}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	assertOps(t, f.prov.ops(), "create_lot")

	it, err := f.store.Get(1)
	if err != nil {
		t.Fatalf("item should remain queued: %v", err)
	}
	if it.RetryCount != 1 || it.ModifiedAt == nil || !it.ModifiedAt.Equal(fixedNow) {
		t.Fatalf("expected retry_count=1 stamped at now, got %d / %v", it.RetryCount, it.ModifiedAt)
	}
}

func TestProcessPending_AddFailureStillFinishesLot(t *testing.T) {
	f := newFixture()
	f.prov.failNth["add_to_lot"] = 2
	f.enqueue(t, messagesConfig(1), 0, phoneRecipient("1"), phoneRecipient("2"), phoneRecipient("3"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertOps(t, f.prov.ops(), "create_lot", "add_to_lot", "add_to_lot", "finish_lot")
	if rep.Scheduled != 3 || rep.Processed != 0 {
		t.Fatalf("expected whole group rescheduled, got %+v", rep)
	}
	if f.store.Len() != 3 {
		t.Fatalf("expected items kept for retry, %d left", f.store.Len())
	}
}

func TestProcessPending_FirstChunkFailureReschedulesAll(t *testing.T) {
	f := newFixture()
	f.prov.failNth["add_to_lot"] = 1
	cfg := messagesConfig(2)
	cfg["retry_limit"] = 3
	f.enqueue(t, cfg, 0, phoneRecipient("1"), phoneRecipient("2"), phoneRecipient("3"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != (domain.Report{Eligible: 3, Processed: 0, Scheduled: 3}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	assertOps(t, f.prov.ops(), "create_lot", "add_to_lot", "finish_lot")
	for id := int64(1); id <= 3; id++ {
		it, err := f.store.Get(id)
		if err != nil || it.RetryCount != 1 {
			t.Fatalf("expected item %d at retry_count=1, got %v / %v", id, it, err)
		}
	}
}

func TestProcessPending_EmailsSingleEndpoint(t *testing.T) {
	f := newFixture()
	f.enqueue(t, domain.ActionConfig{"url": "https://provider.test", "flow": "emails_single"}, 0,
		domain.Recipient{ID: "1", Tokens: map[string]any{"email": "a@b.c"}})

	rep, _ := f.d.ProcessPending(context.Background(), "")
	if rep.Processed != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	calls := f.prov.callsOf("send_single")
	if len(calls) != 1 || calls[0].URL != "https://provider.test/api/Email/AddEmailInvoice" {
		t.Fatalf("unexpected single email calls %+v", calls)
	}
}

func TestProcessPending_ValidationFailureFinishesLot(t *testing.T) {
	f := newFixture()
	noPhone := domain.Recipient{ID: "1", Tokens: map[string]any{"areaCode": "11"}}
	f.enqueue(t, messagesConfig(10), 0, noPhone)

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertOps(t, f.prov.ops(), "create_lot", "finish_lot")
	if rep.Scheduled != 1 {
		t.Fatalf("expected item rescheduled, got %+v", rep)
	}
}

func TestProcessPending_FinishFailureReschedules(t *testing.T) {
	f := newFixture()
	f.prov.failOps["finish_lot"] = &provider.Error{Op: "finish_lot", StatusCode: 502}
	f.enqueue(t, messagesConfig(10), 0, phoneRecipient("1"))

	rep, _ := f.d.ProcessPending(context.Background(), "")
	if rep.Scheduled != 1 || f.store.Len() != 1 {
		t.Fatalf("expected item rescheduled, got %+v", rep)
	}
}

func TestProcessPending_RetryLimitDropsItems(t *testing.T) {
	f := newFixture()
	f.prov.failOps["create_lot"] = errors.New("down")
	cfg := messagesConfig(10)
	cfg["retry_limit"] = 3
	f.enqueue(t, cfg, 3, phoneRecipient("1"))
	f.enqueue(t, cfg, 2, phoneRecipient("2"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != (domain.Report{Eligible: 2, Processed: 1, Scheduled: 1}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	if _, err := f.store.Get(1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("item at the limit should be deleted")
	}
	if it, _ := f.store.Get(2); it.RetryCount != 3 {
		t.Fatalf("expected retry_count=3, got %d", it.RetryCount)
	}
}

func TestProcessPending_EmailsWrapChunks(t *testing.T) {
	f := newFixture()
	cfg := domain.ActionConfig{
		"url":                     "https://provider.test",
		"flow":                    "emails_batch",
		"batch_size":              5,
		"idBookBusinessSendGroup": 9,
		"user":                    "ops",
	}
	f.enqueue(t, cfg, 0, domain.Recipient{ID: "1", Tokens: map[string]any{"email": "a@b.c"}})

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Processed != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	create := f.prov.callsOf("create_lot")[0]
	if create.URL != "https://provider.test/api/Email/CreateLot" {
		t.Fatalf("unexpected create url %q", create.URL)
	}
	if b := create.Body.(map[string]any); b["idBookBusinessSendGroup"] != 9 || b["user"] != "ops" {
		t.Fatalf("unexpected create body %v", b)
	}
	add := f.prov.callsOf("add_to_lot")[0]
	env, ok := add.Body.(map[string]any)
	if !ok {
		t.Fatalf("expected data envelope, got %T", add.Body)
	}
	if chunk := env["data"].([]map[string]any); len(chunk) != 1 || chunk[0]["email"] != "a@b.c" {
		t.Fatalf("unexpected envelope %v", env)
	}
}

func TestProcessPending_SingleFlowIsolatesFailures(t *testing.T) {
	f := newFixture()
	f.prov.failNth["send_single"] = 2
	cfg := messagesConfig(10)
	cfg["flow"] = "messages_single"
	f.enqueue(t, cfg, 0, phoneRecipient("1"), phoneRecipient("2"), phoneRecipient("3"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != (domain.Report{Eligible: 3, Processed: 2, Scheduled: 1}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected only the failed item left, got %d", f.store.Len())
	}
	if it, err := f.store.Get(2); err != nil || it.RetryCount != 1 {
		t.Fatalf("expected item 2 rescheduled, got %v / %v", it, err)
	}
	if u := f.prov.callsOf("send_single")[0].URL; u != "https://provider.test/api/Message/AddMessageInvoice" {
		t.Fatalf("unexpected single url %q", u)
	}
}

func TestProcessPending_GroupsByHashInOrder(t *testing.T) {
	f := newFixture()
	a := messagesConfig(10)
	b := messagesConfig(10)
	b["name"] = "autumn"
	hashA := f.enqueue(t, a, 0, phoneRecipient("1"))
	f.enqueue(t, b, 0, phoneRecipient("2"))
	f.enqueue(t, a, 0, phoneRecipient("3"))

	rep, err := f.d.ProcessPending(context.Background(), hashA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Eligible != 2 || rep.Processed != 2 {
		t.Fatalf("expected only hash A items, got %+v", rep)
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected hash B item untouched, %d left", f.store.Len())
	}

	rep, _ = f.d.ProcessPending(context.Background(), "")
	if rep.Eligible != 1 || rep.Processed != 1 {
		t.Fatalf("unexpected second cycle %+v", rep)
	}
	creates := f.prov.callsOf("create_lot")
	if len(creates) != 2 || creates[1].Body.(map[string]any)["name"] != "autumn" {
		t.Fatalf("expected one lot per group, got %d", len(creates))
	}
}

func TestProcessPending_HeldLeaseSkipsGroup(t *testing.T) {
	leaser := dispatch.NewMemoryLeaser()
	skipped := 0
	f := newFixture(
		dispatch.WithLeaser(leaser),
		dispatch.WithHooks(dispatch.MetricHooks{OnSkippedGroup: func() { skipped++ }}),
	)
	hash := f.enqueue(t, messagesConfig(10), 0, phoneRecipient("1"))

	release, ok, _ := leaser.TryAcquire(context.Background(), hash)
	if !ok {
		t.Fatal("expected to acquire a fresh lease")
	}
	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != (domain.Report{Eligible: 1}) || skipped != 1 || len(f.prov.ops()) != 0 {
		t.Fatalf("expected group skipped, got %+v skipped=%d", rep, skipped)
	}

	release()
	rep, _ = f.d.ProcessPending(context.Background(), "")
	if rep.Processed != 1 {
		t.Fatalf("expected group dispatched after release, got %+v", rep)
	}
}

func TestProcessPending_UndecodableSnapshotReschedules(t *testing.T) {
	f := newFixture()
	f.store.Put(domain.QueueItem{ConfigHash: "broken", ConfigSnapshot: []byte("{not json"), Payload: []byte(`{}`)})

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Scheduled != 1 || len(f.prov.ops()) != 0 {
		t.Fatalf("expected item rescheduled without provider calls, got %+v", rep)
	}
}

func TestProcessPending_PanicReschedulesGroup(t *testing.T) {
	f := newFixture()
	f.prov.panicOn = "create_lot"
	f.enqueue(t, messagesConfig(10), 0, phoneRecipient("1"), phoneRecipient("2"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Scheduled != 2 {
		t.Fatalf("expected group rescheduled after panic, got %+v", rep)
	}
}

func TestProcessPending_SingleFlowPanicIsolatesItem(t *testing.T) {
	f := newFixture()
	sends := 0
	f.prov.onCall = func(op string) {
		if op == "send_single" {
			sends++
			if sends == 2 {
				panic("provider exploded")
			}
		}
	}
	cfg := messagesConfig(10)
	cfg["flow"] = "messages_single"
	f.enqueue(t, cfg, 0, phoneRecipient("1"), phoneRecipient("2"), phoneRecipient("3"))

	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != (domain.Report{Eligible: 3, Processed: 2, Scheduled: 1}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected only the panicking item left, got %d", f.store.Len())
	}
	if it, err := f.store.Get(2); err != nil || it.RetryCount != 1 {
		t.Fatalf("expected item 2 rescheduled, got %v / %v", it, err)
	}
}

func TestProcessPending_CancelledMidLotStillCompletesGroup(t *testing.T) {
	f := newFixture(dispatch.WithLimiter(ratelimiter.New(1000)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.prov.onCall = func(op string) {
		if op == "create_lot" {
			cancel()
		}
	}
	f.enqueue(t, messagesConfig(10), 0, phoneRecipient("1"), phoneRecipient("2"))
	other := messagesConfig(10)
	other["name"] = "autumn"
	f.enqueue(t, other, 0, phoneRecipient("3"))

	rep, err := f.d.ProcessPending(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertOps(t, f.prov.ops(), "create_lot", "add_to_lot", "finish_lot")
	if rep != (domain.Report{Eligible: 3, Processed: 2}) {
		t.Fatalf("expected started group sent and next group left queued, got %+v", rep)
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected the unstarted group queued, %d left", f.store.Len())
	}
}

func TestProcessPending_SharedLeaseNeverResendsGroup(t *testing.T) {
	leaser := dispatch.NewMemoryLeaser()
	a := newFixture(dispatch.WithLeaser(leaser))
	first := messagesConfig(10)
	second := messagesConfig(10)
	second["name"] = "autumn"
	a.enqueue(t, first, 0, phoneRecipient("1"))
	a.enqueue(t, second, 0, phoneRecipient("2"))

	provB := newFakeProvider()
	b := dispatch.NewDispatcher(a.store, a.contacts, provB, zap.NewNop(), dispatch.WithLeaser(leaser))

	// B runs a whole cycle while A is inside the first group's create_lot.
	var repB domain.Report
	var errB error
	ran := false
	a.prov.onCall = func(op string) {
		if op == "create_lot" && !ran {
			ran = true
			repB, errB = b.ProcessPending(context.Background(), "")
		}
	}

	repA, err := a.d.ProcessPending(context.Background(), "")
	if err != nil || errB != nil {
		t.Fatalf("unexpected errors: %v / %v", err, errB)
	}
	if got := len(a.prov.callsOf("create_lot")) + len(provB.callsOf("create_lot")); got != 2 {
		t.Fatalf("expected one lot per group across both dispatchers, got %d", got)
	}
	if len(provB.callsOf("create_lot")) != 1 || provB.callsOf("create_lot")[0].Body.(map[string]any)["name"] != "autumn" {
		t.Fatal("expected the second dispatcher to send only the unleased group")
	}
	if repA != (domain.Report{Eligible: 2, Processed: 1}) || repB != (domain.Report{Eligible: 2, Processed: 1}) {
		t.Fatalf("unexpected reports A=%+v B=%+v", repA, repB)
	}
	if a.store.Len() != 0 {
		t.Fatalf("expected queue drained, %d left", a.store.Len())
	}
}

func TestProcessPending_ListErrorAborts(t *testing.T) {
	f := newFixture()
	f.store.ListErr = errors.New("db gone")

	if _, err := f.d.ProcessPending(context.Background(), ""); err == nil {
		t.Fatal("expected list error to surface")
	}
}

func TestProcessPending_EmptyQueue(t *testing.T) {
	f := newFixture()
	rep, err := f.d.ProcessPending(context.Background(), "")
	if err != nil || rep != (domain.Report{}) {
		t.Fatalf("expected zero report, got %+v / %v", rep, err)
	}
}

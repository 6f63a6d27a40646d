package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk/internal/domain/negotiation"
	"github.com/dealdesk/dealdesk/internal/domain/outcome"
)

type fakeRepo struct {
	mu    sync.Mutex
	saves int
	open  []*negotiation.Conversation
	err   error
}

func (r *fakeRepo) Save(ctx context.Context, c *negotiation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return r.err
}

func (r *fakeRepo) ListOpen(ctx context.Context) ([]*negotiation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open, r.err
}

type fakeOutcomes struct {
	mu      sync.Mutex
	records []*outcome.Record
}

func (o *fakeOutcomes) Create(ctx context.Context, r *outcome.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, r)
	return nil
}

func (o *fakeOutcomes) GetByConversationID(ctx context.Context, id uuid.UUID) ([]*outcome.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*outcome.Record
	for _, r := range o.records {
		if r.ConversationID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (o *fakeOutcomes) List(ctx context.Context, limit, offset int) ([]*outcome.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.records, nil
}

func (o *fakeOutcomes) all() []*outcome.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*outcome.Record, len(o.records))
	copy(out, o.records)
	return out
}

type sentMessage struct {
	sellerID string
	text     string
}

type fakeTransport struct {
	mu           sync.Mutex
	sent         []sentMessage
	operatorMsgs []string
	operatorAtts []string
	alertCount   int
	recent       [][]byte
}

func (t *fakeTransport) Send(ctx context.Context, sellerID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMessage{sellerID: sellerID, text: text})
	return nil
}

func (t *fakeTransport) SendAttachment(ctx context.Context, sellerID string, data []byte, caption string) error {
	return nil
}

func (t *fakeTransport) FetchRecentAttachments(ctx context.Context, sellerID string, limit int, since time.Time) ([][]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recent, nil
}

func (t *fakeTransport) NotifyOperator(ctx context.Context, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operatorMsgs = append(t.operatorMsgs, text)
	return nil
}

func (t *fakeTransport) NotifyOperatorAttachment(ctx context.Context, data []byte, caption string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operatorAtts = append(t.operatorAtts, caption)
	return nil
}

func (t *fakeTransport) RequestOutOfBandAlert(ctx context.Context, operatorID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alertCount++
	return nil
}

func (t *fakeTransport) sellerMessages(sellerID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, m := range t.sent {
		if m.sellerID == sellerID {
			out = append(out, m.text)
		}
	}
	return out
}

func (t *fakeTransport) operatorMessagesContaining(substr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.operatorMsgs {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

func (t *fakeTransport) alerts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alertCount
}

// scriptedClassifier maps exact input texts to canned results; unknown
// texts come back as empty classifications.
type scriptedClassifier struct {
	offers      map[string]OfferClassification
	replies     map[string]ReplyClassification
	withdrawals map[string]Signal
	refunds     map[string]Signal
	userStops   map[string]bool
	messes      map[string]string
}

func newScriptedClassifier() *scriptedClassifier {
	return &scriptedClassifier{
		offers:      make(map[string]OfferClassification),
		replies:     make(map[string]ReplyClassification),
		withdrawals: make(map[string]Signal),
		refunds:     make(map[string]Signal),
		userStops:   make(map[string]bool),
		messes:      make(map[string]string),
	}
}

func (s *scriptedClassifier) ClassifyOffer(ctx context.Context, text string) (OfferClassification, error) {
	return s.offers[text], nil
}

func (s *scriptedClassifier) ClassifyReply(ctx context.Context, text string) (ReplyClassification, error) {
	return s.replies[text], nil
}

func (s *scriptedClassifier) DetectWithdrawal(ctx context.Context, text string) (Signal, error) {
	return s.withdrawals[text], nil
}

func (s *scriptedClassifier) DetectRefundConfirmation(ctx context.Context, text string) (Signal, error) {
	return s.refunds[text], nil
}

func (s *scriptedClassifier) DetectUserWithdrawal(ctx context.Context, text string) (bool, error) {
	return s.userStops[text], nil
}

func (s *scriptedClassifier) ExtractMess(ctx context.Context, text string) (string, error) {
	return s.messes[text], nil
}

type fakeOracle struct {
	mu        sync.Mutex
	canStart  bool
	target    int
	messes    []string
	exempt    map[string]bool
	fulfilled []negotiation.Category
	failed    []uuid.UUID
}

func (o *fakeOracle) CanStart(category negotiation.Category) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.canStart
}

func (o *fakeOracle) TargetPrice(category negotiation.Category) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

func (o *fakeOracle) AcceptedMesses(category negotiation.Category) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.messes
}

func (o *fakeOracle) IsExempt(sellerID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exempt[sellerID]
}

func (o *fakeOracle) MarkFulfilled(category negotiation.Category, conversationID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfilled = append(o.fulfilled, category)
}

func (o *fakeOracle) MarkFailed(conversationID uuid.UUID, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, conversationID)
}

func (o *fakeOracle) fulfilledCategories() []negotiation.Category {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]negotiation.Category, len(o.fulfilled))
	copy(out, o.fulfilled)
	return out
}

type fakeAttachments struct {
	mu    sync.Mutex
	saved int
}

func (a *fakeAttachments) SaveCoupon(ctx context.Context, category negotiation.Category, data []byte, sellerName string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved++
	return "coupons/test.jpg", nil
}

func (a *fakeAttachments) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saved
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeSink) Broadcast(event string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) has(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

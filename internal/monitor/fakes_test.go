package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rastreador-precos/internal/models"
)

var errBoom = errors.New("boom")

type memStore struct {
	mu          sync.Mutex
	products    map[string]models.Product
	users       []models.Subscriber
	updates     map[string]models.ProductUpdate
	listErr     error
	countErr    map[string]error
	removeErr   map[string]error
	updateErr   map[string]error
	removeCalls int
}

func newMemStore() *memStore {
	return &memStore{
		products:  map[string]models.Product{},
		updates:   map[string]models.ProductUpdate{},
		countErr:  map[string]error{},
		removeErr: map[string]error{},
		updateErr: map[string]error{},
	}
}

func (s *memStore) addProduct(p models.Product) {
	s.products[p.ID] = p
}

func (s *memStore) addUser(id string, tracked ...string) {
	s.users = append(s.users, models.Subscriber{ID: id, TrackedIDs: tracked})
}

func (s *memStore) GetProducts(_ context.Context, ids []string) (map[string]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memStore) CountProduct(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.countErr[id]; err != nil {
		return 0, err
	}
	if _, ok := s.products[id]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *memStore) UpdateProduct(_ context.Context, id string, upd models.ProductUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[id]; err != nil {
		return err
	}
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("produto %s não encontrado", id)
	}
	p.Name = upd.Name
	p.CurrentPrice = upd.CurrentPrice
	p.OriginalPrice = upd.OriginalPrice
	s.products[id] = p
	s.updates[id] = upd
	return nil
}

func (s *memStore) ListSubscribers(context.Context) ([]models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Subscriber, len(s.users))
	for i, u := range s.users {
		out[i] = models.Subscriber{ID: u.ID, TrackedIDs: append([]string(nil), u.TrackedIDs...)}
	}
	return out, nil
}

func (s *memStore) RemoveTrackedIDs(_ context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls++
	if err := s.removeErr[userID]; err != nil {
		return err
	}
	drop := map[string]struct{}{}
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	for i, u := range s.users {
		if u.ID != userID {
			continue
		}
		var kept []string
		for _, id := range u.TrackedIDs {
			if _, ok := drop[id]; !ok {
				kept = append(kept, id)
			}
		}
		s.users[i].TrackedIDs = kept
	}
	return nil
}

type fakeSource struct {
	mu        sync.Mutex
	snapshots map[string]models.ProductSnapshot
	errs      map[string]error
	calls     []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{snapshots: map[string]models.ProductSnapshot{}, errs: map[string]error{}}
}

func (f *fakeSource) Fetch(_ context.Context, url string) (models.ProductSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return models.ProductSnapshot{}, err
	}
	snap, ok := f.snapshots[url]
	if !ok {
		return models.ProductSnapshot{}, fmt.Errorf("sem dados para %s", url)
	}
	return snap, nil
}

type sentMessage struct {
	recipient    string
	notification models.Notification
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[string]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failOn: map[string]error{}}
}

func (f *fakeNotifier) Send(_ context.Context, recipientID string, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[recipientID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{recipient: recipientID, notification: n})
	return nil
}

func (f *fakeNotifier) to(recipient string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, m := range f.sent {
		if m.recipient == recipient {
			out = append(out, m.notification)
		}
	}
	return out
}

type fakeSink struct {
	summaries []string
	details   [][]byte
}

func (f *fakeSink) Publish(_ context.Context, summary string, detail []byte) error {
	f.summaries = append(f.summaries, summary)
	f.details = append(f.details, detail)
	return nil
}

type fakeProgress struct {
	updates []string
}

func (f *fakeProgress) Update(_ context.Context, text string) {
	f.updates = append(f.updates, text)
}

type harness struct {
	store    *memStore
	source   *fakeSource
	notifier *fakeNotifier
	sink     *fakeSink
	monitor  *Monitor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		source:   newFakeSource(),
		notifier: newFakeNotifier(),
		sink:     &fakeSink{},
	}
	h.monitor = New(h.store, h.store, h.source, h.notifier, h.sink, zerolog.Nop(), Options{NotifyConcurrency: 4})
	h.monitor.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return h
}

func product(id string, amount int64) models.Product {
	return models.Product{
		ID:           id,
		URL:          "https://loja.example/" + id,
		Source:       "amazon",
		Currency:     "₹",
		Name:         "Produto " + id,
		CurrentPrice: models.PricePair{Display: fmt.Sprint(amount), Amount: amount},
	}
}

func (h *harness) priceFor(p models.Product, newPrice any) {
	h.source.snapshots[p.URL] = models.ProductSnapshot{
		Name:         p.Name,
		CurrentPrice: newPrice,
		Currency:     "₹",
		Source:       p.Source,
		Images:       []string{"https://img.example/" + p.ID + ".jpg"},
	}
}

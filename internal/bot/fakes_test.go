package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rastreador-precos/internal/database"
	"rastreador-precos/internal/models"
)

type uploadCall struct {
	endpoint string
	params   tgbotapi.Params
	files    []tgbotapi.RequestFile
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	calls    []uploadCall
	nextID   int

	// sendErrs é consumido em ordem, um erro por chamada de Send
	sendErrs []error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, uploadCall{endpoint: endpoint, params: params})
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) UploadFiles(endpoint string, params tgbotapi.Params, files []tgbotapi.RequestFile) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, uploadCall{endpoint: endpoint, params: params, files: files})
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts devolve o texto de cada mensagem enviada ou editada, em ordem
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) answers() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

type fakeStore struct {
	products  map[string]models.Product
	trackings map[string][]string
	users     map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  map[string]models.Product{},
		trackings: map[string][]string{},
		users:     map[string]bool{},
	}
}

func (s *fakeStore) InsertProduct(_ context.Context, p models.Product) error {
	s.products[p.ID] = p
	return nil
}

func (s *fakeStore) GetProduct(_ context.Context, id string) (models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return models.Product{}, database.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GetProducts(_ context.Context, ids []string) (map[string]models.Product, error) {
	out := map[string]models.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *fakeStore) TrackedIDs(_ context.Context, userID string) ([]string, error) {
	return s.trackings[userID], nil
}

func (s *fakeStore) AppendTrackedID(_ context.Context, userID, productID string) error {
	s.users[userID] = true
	for _, id := range s.trackings[userID] {
		if id == productID {
			return nil
		}
	}
	s.trackings[userID] = append(s.trackings[userID], productID)
	return nil
}

func (s *fakeStore) RemoveTrackedIDs(_ context.Context, userID string, productIDs []string) error {
	var kept []string
	for _, id := range s.trackings[userID] {
		drop := false
		for _, rm := range productIDs {
			drop = drop || id == rm
		}
		if !drop {
			kept = append(kept, id)
		}
	}
	s.trackings[userID] = kept
	return nil
}

func (s *fakeStore) UpsertUser(_ context.Context, userID string) (bool, error) {
	if s.users[userID] {
		return false, nil
	}
	s.users[userID] = true
	return true, nil
}

type fakeSource struct {
	snapshot models.ProductSnapshot
	err      error
}

func (f *fakeSource) Fetch(context.Context, string) (models.ProductSnapshot, error) {
	return f.snapshot, f.err
}

func privateMessage(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "q1",
		From: &tgbotapi.User{ID: userID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 55,
			Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		},
	}}
}

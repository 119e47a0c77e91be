package invites

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stanstork/invitation-api/internal/events"
	"github.com/stanstork/invitation-api/internal/models"
	"github.com/stanstork/invitation-api/internal/notification"
	"github.com/stanstork/invitation-api/internal/repository"
)

// In-memory repository fakes. The mutexes matter: the concurrency tests
// hammer these from many goroutines, and the fakes must provide the same
// atomicity the conditional SQL updates provide in production.

type fakeStatsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.InvitationStats
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{rows: make(map[string]*models.InvitationStats)}
}

func (f *fakeStatsRepo) GetOrCreate(userID string, initialAvailable int) (models.InvitationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok {
		row = &models.InvitationStats{UserID: userID, Available: initialAvailable}
		f.rows[userID] = row
	}
	return *row, nil
}

func (f *fakeStatsRepo) Get(userID string) (models.InvitationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok {
		return models.InvitationStats{}, sql.ErrNoRows
	}
	return *row, nil
}

func (f *fakeStatsRepo) AddAvailable(userID string, count int) (models.InvitationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok {
		return models.InvitationStats{}, sql.ErrNoRows
	}
	row.Available += count
	return *row, nil
}

func (f *fakeStatsRepo) TryConsume(userID string, count int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok || row.Available < count {
		return false, nil
	}
	row.Available -= count
	row.Sent += count
	return true, nil
}

func (f *fakeStatsRepo) RecordAccepted(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok {
		return sql.ErrNoRows
	}
	row.Accepted++
	return nil
}

type fakeInvitationRepo struct {
	mu     sync.Mutex
	nextID int
	byKey  map[string]*models.Invitation
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{byKey: make(map[string]*models.Invitation)}
}

func (f *fakeInvitationRepo) Create(invitation models.Invitation) (models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byKey[invitation.Key]; exists {
		return models.Invitation{}, repository.ErrDuplicate
	}
	f.nextID++
	invitation.ID = fmt.Sprintf("inv-%d", f.nextID)
	stored := invitation
	f.byKey[invitation.Key] = &stored
	return invitation, nil
}

func (f *fakeInvitationRepo) GetByKey(key string) (models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation, ok := f.byKey[key]
	if !ok {
		return models.Invitation{}, sql.ErrNoRows
	}
	return *invitation, nil
}

func (f *fakeInvitationRepo) FindValidByEmail(email string, now time.Time) (models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, invitation := range f.byKey {
		if strings.EqualFold(invitation.Email, email) && invitation.IsValid(now) {
			return *invitation, nil
		}
	}
	return models.Invitation{}, sql.ErrNoRows
}

func (f *fakeInvitationRepo) MarkAccepted(key string, now time.Time) (models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation, ok := f.byKey[key]
	if !ok || invitation.AcceptedAt != nil || !now.Before(invitation.ExpiresAt) {
		return models.Invitation{}, sql.ErrNoRows
	}
	at := now
	invitation.AcceptedAt = &at
	return *invitation, nil
}

func (f *fakeInvitationRepo) List(limit int) ([]models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var invitations []models.Invitation
	for _, invitation := range f.byKey {
		invitations = append(invitations, *invitation)
	}
	sort.Slice(invitations, func(i, j int) bool {
		return invitations[i].CreatedAt.After(invitations[j].CreatedAt)
	})
	if len(invitations) > limit {
		invitations = invitations[:limit]
	}
	return invitations, nil
}

func (f *fakeInvitationRepo) PurgeExpired(now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var purged int64
	for key, invitation := range f.byKey {
		if invitation.AcceptedAt == nil && !now.Before(invitation.ExpiresAt) {
			delete(f.byKey, key)
			purged++
		}
	}
	return purged, nil
}

type fakeRequestRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []models.InvitationRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{}
}

func (f *fakeRequestRepo) Create(email string, now time.Time) (models.InvitationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if strings.EqualFold(row.Email, email) {
			return models.InvitationRequest{}, repository.ErrDuplicate
		}
	}
	f.nextID++
	request := models.InvitationRequest{ID: f.nextID, Email: email, RequestedAt: now}
	f.rows = append(f.rows, request)
	return request, nil
}

func (f *fakeRequestRepo) Oldest(n int) ([]models.InvitationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted := make([]models.InvitationRequest, len(f.rows))
	copy(sorted, f.rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RequestedAt.Equal(sorted[j].RequestedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].RequestedAt.Before(sorted[j].RequestedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted, nil
}

func (f *fakeRequestRepo) Delete(requestID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID == requestID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeRequestRepo) List() ([]models.InvitationRequest, error) {
	return f.Oldest(len(f.rows))
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]models.User // keyed by username
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]models.User)}
	for _, user := range users {
		repo.users[user.Username] = user
	}
	return repo
}

func (f *fakeUserRepo) GetByUsername(username string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) GetByID(userID string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (f *fakeUserRepo) ExistsByEmail(email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) CreateUser(username, email, password string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[username]; exists {
		return models.User{}, repository.ErrDuplicate
	}
	f.nextID++
	user := models.User{
		ID:       fmt.Sprintf("user-%d", f.nextID),
		Username: username,
		Email:    email,
		IsActive: true,
		Role:     models.RoleMember,
	}
	f.users[username] = user
	return user, nil
}

func (f *fakeUserRepo) DeleteUser(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for username, user := range f.users {
		if user.ID == userID {
			delete(f.users, username)
			return nil
		}
	}
	return sql.ErrNoRows
}

// fakeKeygen hands out a scripted sequence of keys, which lets tests force
// collisions on the store's unique index.
type fakeKeygen struct {
	mu   sync.Mutex
	next int
	keys []string
}

func (f *fakeKeygen) Generate() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next < len(f.keys) {
		key := f.keys[f.next]
		f.next++
		return key, nil
	}
	f.next++
	return fmt.Sprintf("key-%d", f.next), nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []models.Invitation
	err  error
}

func (f *fakeMailer) SendInvitation(invitation models.Invitation, _ models.User, _ notification.Templates) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, invitation)
	return nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) typesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, event := range f.events {
		types = append(types, event.Type)
	}
	return types
}

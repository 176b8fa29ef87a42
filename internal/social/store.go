package social

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"chat-client/internal/api"
	"chat-client/internal/models"
)

// Relationship of the current user to another user.
type Relationship string

const (
	RelationFriend   Relationship = "FRIEND"
	RelationSent     Relationship = "SENT"
	RelationReceived Relationship = "RECEIVED"
	RelationNone     Relationship = "NONE"
)

const (
	sendFailedMessage    = "Failed to send friend request."
	acceptFailedMessage  = "Failed to accept friend request."
	declineFailedMessage = "Failed to decline friend request."
	searchFailedMessage  = "Search failed."
	loadFailedMessage    = "Failed to load friends."
)

// API is the REST surface of the social graph.
type API interface {
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
	ListFriends(ctx context.Context) ([]models.User, error)
	ListFriendRequests(ctx context.Context) (models.FriendRequests, error)
	SendFriendRequest(ctx context.Context, toID string) (models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID string) error
	DeclineFriendRequest(ctx context.Context, requestID string) error
}

// Store caches friends, friend requests and the latest search results.
type Store struct {
	api API

	mu        sync.RWMutex
	results   []models.User
	friends   []models.User
	incoming  []models.FriendRequest
	outgoing  []models.FriendRequest
	searching bool
}

func NewStore(api API) *Store {
	return &Store{api: api}
}

// SearchUsers replaces the search results. An empty query clears them
// without calling the API.
func (s *Store) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	if query == "" {
		s.mu.Lock()
		s.results = nil
		s.mu.Unlock()
		return nil, nil
	}

	s.mu.Lock()
	s.searching = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.searching = false
		s.mu.Unlock()
	}()

	users, err := s.api.SearchUsers(ctx, query)
	if err != nil {
		return nil, api.WithFallback(err, searchFailedMessage)
	}

	s.mu.Lock()
	s.results = users
	s.mu.Unlock()
	return append([]models.User(nil), users...), nil
}

func (s *Store) FetchFriends(ctx context.Context) error {
	friends, err := s.api.ListFriends(ctx)
	if err != nil {
		return api.WithFallback(err, loadFailedMessage)
	}
	s.mu.Lock()
	s.friends = friends
	s.mu.Unlock()
	return nil
}

func (s *Store) FetchFriendRequests(ctx context.Context) error {
	reqs, err := s.api.ListFriendRequests(ctx)
	if err != nil {
		return api.WithFallback(err, loadFailedMessage)
	}
	s.mu.Lock()
	s.incoming = reqs.Incoming
	s.outgoing = reqs.Outgoing
	s.mu.Unlock()
	return nil
}

// InitData loads friends and friend requests concurrently.
func (s *Store) InitData(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.FetchFriends(gctx) })
	g.Go(func() error { return s.FetchFriendRequests(gctx) })
	return g.Wait()
}

// SendFriendRequest sends a request to toID and records it as outgoing.
func (s *Store) SendFriendRequest(ctx context.Context, toID string) (models.FriendRequest, error) {
	req, err := s.api.SendFriendRequest(ctx, toID)
	if err != nil {
		return models.FriendRequest{}, api.WithFallback(err, sendFailedMessage)
	}
	s.mu.Lock()
	s.outgoing = append(s.outgoing, req)
	s.mu.Unlock()
	return req, nil
}

// AcceptFriendRequest accepts requestID and reloads friends and requests.
func (s *Store) AcceptFriendRequest(ctx context.Context, requestID string) error {
	if err := s.api.AcceptFriendRequest(ctx, requestID); err != nil {
		return api.WithFallback(err, acceptFailedMessage)
	}
	return s.InitData(ctx)
}

// DeclineFriendRequest declines requestID and drops it from the incoming list.
func (s *Store) DeclineFriendRequest(ctx context.Context, requestID string) error {
	if err := s.api.DeclineFriendRequest(ctx, requestID); err != nil {
		return api.WithFallback(err, declineFailedMessage)
	}
	s.mu.Lock()
	kept := s.incoming[:0:0]
	for _, r := range s.incoming {
		if r.ID != requestID {
			kept = append(kept, r)
		}
	}
	s.incoming = kept
	s.mu.Unlock()
	return nil
}

// Relationship classifies targetID against the cached friends and requests.
func (s *Store) Relationship(targetID string) Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.friends {
		if f.ID == targetID {
			return RelationFriend
		}
	}
	for _, r := range s.outgoing {
		if r.To.ID == targetID {
			return RelationSent
		}
	}
	for _, r := range s.incoming {
		if r.From.ID == targetID {
			return RelationReceived
		}
	}
	return RelationNone
}

// IncomingRequestID returns the id of the pending request from targetID.
func (s *Store) IncomingRequestID(targetID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.incoming {
		if r.From.ID == targetID {
			return r.ID, true
		}
	}
	return "", false
}

func (s *Store) SearchResults() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.User(nil), s.results...)
}

func (s *Store) Searching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searching
}

func (s *Store) Friends() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.User(nil), s.friends...)
}

func (s *Store) FriendRequests() models.FriendRequests {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.FriendRequests{
		Incoming: append([]models.FriendRequest(nil), s.incoming...),
		Outgoing: append([]models.FriendRequest(nil), s.outgoing...),
	}
}

// Reset drops all cached data, as after a logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	s.friends = nil
	s.incoming = nil
	s.outgoing = nil
	s.searching = false
}

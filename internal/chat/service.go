package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arotu/chat-server/internal/metrics"
	"github.com/arotu/chat-server/internal/store"
)

// Publisher fans a resolved message out to delivery topics. Publishing
// to a topic with no subscribers is a silent no-op; the store, not the
// live feed, is the order of record.
type Publisher interface {
	PublishMessage(msg *Message, topics ...string)
}

// Service is the message ingress and query core. Every message
// creation, REST or real-time, goes through this single code path:
// persist exactly once, then publish exactly once per routing topic
// (write-then-relay).
type Service struct {
	store     store.Store
	publisher Publisher
	log       *zerolog.Logger
}

// NewService creates the messaging service. publisher may be nil when
// no real-time delivery is wired (e.g. in store-only tests).
func NewService(st store.Store, publisher Publisher, logger *zerolog.Logger) *Service {
	return &Service{
		store:     st,
		publisher: publisher,
		log:       logger,
	}
}

// CreatePrivateMessage persists a private message and relays it to the
// receiver's and sender's user-topics. Self-messaging is allowed.
func (s *Service) CreatePrivateMessage(ctx context.Context, senderID, receiverID, text, media string) (*Message, error) {
	if err := validateID(senderID); err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	if err := validateID(receiverID); err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}

	users, err := s.store.GetUsersByIDs(ctx, []string{senderID, receiverID})
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	sender, ok := users[senderID]
	if !ok {
		return nil, fmt.Errorf("sender: %w", ErrNotFound)
	}
	receiver, ok := users[receiverID]
	if !ok {
		return nil, fmt.Errorf("receiver: %w", ErrNotFound)
	}

	now := time.Now().UTC()
	row := &store.Message{
		ID:         uuid.NewString(),
		Kind:       store.MessageKindPrivate,
		SenderID:   senderID,
		ReceiverID: &receiverID,
		Text:       text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if media != "" {
		row.Media = &media
	}

	if err := s.store.SaveMessage(ctx, row); err != nil {
		return nil, fmt.Errorf("save private message: %w", err)
	}
	metrics.MessagesCreated.WithLabelValues(string(store.MessageKindPrivate)).Inc()

	receiverSummary := summarize(receiver)
	msg := &Message{
		ID:        row.ID,
		Kind:      row.Kind,
		Sender:    summarize(sender),
		Receiver:  &receiverSummary,
		Text:      row.Text,
		Media:     media,
		Seen:      row.Seen,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	s.relay(msg)
	return msg, nil
}

// CreateRoomMessage persists a room message and relays it to the
// room-topic. Sending to a public room adds the sender to the member
// list as an idempotent side effect; private rooms require membership.
func (s *Service) CreateRoomMessage(ctx context.Context, senderID, roomID, text string) (*Message, error) {
	if err := validateID(senderID); err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	if err := validateID(roomID); err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}

	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return nil, fmt.Errorf("get room: %w", err)
	}

	if room.IsPrivate {
		member, err := s.store.IsMember(ctx, senderID, roomID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return nil, fmt.Errorf("room %s is private: %w", roomID, ErrForbidden)
		}
	} else if err := s.store.AddMember(ctx, senderID, roomID); err != nil {
		return nil, fmt.Errorf("auto-join room: %w", err)
	}

	sender, err := s.store.GetUserByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("sender: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	now := time.Now().UTC()
	row := &store.Message{
		ID:        uuid.NewString(),
		Kind:      store.MessageKindRoom,
		SenderID:  senderID,
		RoomID:    &roomID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.SaveMessage(ctx, row); err != nil {
		return nil, fmt.Errorf("save room message: %w", err)
	}
	metrics.MessagesCreated.WithLabelValues(string(store.MessageKindRoom)).Inc()

	msg := &Message{
		ID:        row.ID,
		Kind:      row.Kind,
		Sender:    summarize(sender),
		RoomID:    roomID,
		Text:      row.Text,
		Seen:      row.Seen,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	s.relay(msg)
	return msg, nil
}

// relay publishes an already persisted message. Failures here never
// surface to the caller: the row is durable and will be picked up on
// the next history fetch.
func (s *Service) relay(msg *Message) {
	if s.publisher == nil {
		return
	}
	topics := msg.Topics()
	if len(topics) == 0 {
		s.log.Warn().Str("message_id", msg.ID).Msg("message has no routing topic, skipping relay")
		return
	}
	s.publisher.PublishMessage(msg, topics...)
}

// ListPrivateMessages returns the conversation between two users,
// ascending by creation time. An empty history is an empty slice.
func (s *Service) ListPrivateMessages(ctx context.Context, userA, userB string) ([]*Message, error) {
	if err := validateID(userA); err != nil {
		return nil, err
	}
	if err := validateID(userB); err != nil {
		return nil, err
	}

	rows, err := s.store.ListPrivateMessages(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("list private messages: %w", err)
	}
	return s.resolve(ctx, rows)
}

// ListRoomMessages returns all messages for a room, ascending by
// creation time. A missing room is NotFound; an existing room with no
// messages is an empty slice.
func (s *Service) ListRoomMessages(ctx context.Context, roomID string) ([]*Message, error) {
	if err := validateID(roomID); err != nil {
		return nil, err
	}

	if _, err := s.store.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return nil, fmt.Errorf("get room: %w", err)
	}

	rows, err := s.store.ListRoomMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	return s.resolve(ctx, rows)
}

// RecentConversations folds the user's private messages, newest first,
// into one entry per conversation partner. The input is already
// time-descending, so the first message seen per partner is the most
// recent one and the emit order needs no extra sort.
func (s *Service) RecentConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListConversationMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	order := make([]string, 0, len(rows))
	latest := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		other := otherParticipant(row, userID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		order = append(order, other)
		latest[other] = row.CreatedAt
	}

	users, err := s.store.GetUsersByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}

	conversations := make([]*Conversation, 0, len(order))
	for _, id := range order {
		user, ok := users[id]
		if !ok {
			// Deleted account; skip rather than fail the whole list.
			continue
		}
		conversations = append(conversations, &Conversation{
			Participant:     summarize(user),
			LastMessageTime: latest[id],
		})
	}
	return conversations, nil
}

// ConversationPartners returns the distinct identities the user has a
// private conversation with, most recent first.
func (s *Service) ConversationPartners(ctx context.Context, userID string) ([]UserSummary, error) {
	conversations, err := s.RecentConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	partners := make([]UserSummary, 0, len(conversations))
	for _, c := range conversations {
		partners = append(partners, c.Participant)
	}
	return partners, nil
}

// MarkSeen flags private messages from otherID to userID as seen.
func (s *Service) MarkSeen(ctx context.Context, userID, otherID string) (int64, error) {
	if err := validateID(userID); err != nil {
		return 0, err
	}
	if err := validateID(otherID); err != nil {
		return 0, err
	}
	updated, err := s.store.MarkSeen(ctx, userID, otherID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	return updated, nil
}

// resolve converts store rows into canonical messages with sender and
// receiver display summaries attached.
func (s *Service) resolve(ctx context.Context, rows []*store.Message) ([]*Message, error) {
	ids := make([]string, 0, len(rows)*2)
	idSet := make(map[string]struct{}, len(rows)*2)
	add := func(id string) {
		if _, ok := idSet[id]; !ok {
			idSet[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, row := range rows {
		add(row.SenderID)
		if row.ReceiverID != nil {
			add(*row.ReceiverID)
		}
	}

	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	messages := make([]*Message, 0, len(rows))
	for _, row := range rows {
		msg := &Message{
			ID:        row.ID,
			Kind:      row.Kind,
			Text:      row.Text,
			Seen:      row.Seen,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
		if sender, ok := users[row.SenderID]; ok {
			msg.Sender = summarize(sender)
		} else {
			msg.Sender = UserSummary{ID: row.SenderID}
		}
		if row.ReceiverID != nil {
			summary := UserSummary{ID: *row.ReceiverID}
			if receiver, ok := users[*row.ReceiverID]; ok {
				summary = summarize(receiver)
			}
			msg.Receiver = &summary
		}
		if row.RoomID != nil {
			msg.RoomID = *row.RoomID
		}
		if row.Media != nil {
			msg.Media = *row.Media
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func otherParticipant(msg *store.Message, userID string) string {
	if msg.SenderID == userID && msg.ReceiverID != nil {
		return *msg.ReceiverID
	}
	return msg.SenderID
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%q is not a valid identity: %w", id, ErrInvalidArgument)
	}
	return nil
}

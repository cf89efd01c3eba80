package storage

import (
	"fmt"
	"time"
)

// Message is a user message received from a peer
type Message struct {
	ID         int64  `json:"-"`
	MessageID  string `json:"id"`
	FromID     string `json:"from"`
	Body       string `json:"text"`
	SentAt     int64  `json:"sent_at"`     // Unix milliseconds, as declared by the sender
	ReceivedAt int64  `json:"received_at"` // Unix milliseconds
}

// SaveMessage stores a received message. A message ID seen before is ignored.
func (s *Store) SaveMessage(m Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrClosed
	}

	if m.ReceivedAt == 0 {
		m.ReceivedAt = time.Now().UnixMilli()
	}

	query := `
		INSERT OR IGNORE INTO messages (message_id, from_id, body, sent_at, received_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query, m.MessageID, m.FromID, m.Body, m.SentAt, m.ReceivedAt); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// Messages returns the most recent messages, newest first. limit <= 0 returns all.
func (s *Store) Messages(limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	query := `
		SELECT id, message_id, from_id, body, sent_at, received_at
		FROM messages
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.MessageID, &m.FromID, &m.Body, &m.SentAt, &m.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

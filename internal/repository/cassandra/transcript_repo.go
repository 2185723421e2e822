package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"gufagu-backend/internal/database"
	"gufagu-backend/internal/domain"
)

// TranscriptRepository stores the append-only chat transcript of each match.
// Rows are partitioned by match id and clustered by send time.
type TranscriptRepository struct {
	db *database.CassandraDB
}

// NewTranscriptRepository creates a new TranscriptRepository
func NewTranscriptRepository(db *database.CassandraDB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Append inserts one chat message into the match transcript
func (r *TranscriptRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.MessageID == uuid.Nil {
		msg.MessageID = uuid.New()
	}

	query := `
		INSERT INTO match_messages (
			match_id, sent_at, message_id, sender_handle, sender_id, content
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	var senderID *gocql.UUID
	if msg.SenderID != uuid.Nil {
		id := gocql.UUID(msg.SenderID)
		senderID = &id
	}

	err := r.db.ExecWithContext(ctx, query,
		gocql.UUID(msg.MatchID),
		msg.SentAt,
		gocql.UUID(msg.MessageID),
		string(msg.SenderConn),
		senderID,
		msg.Text,
	)
	if err != nil {
		return fmt.Errorf("failed to append transcript message: %w", err)
	}

	return nil
}

// GetByMatch returns up to limit messages of a match in send order
func (r *TranscriptRepository) GetByMatch(ctx context.Context, matchID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT match_id, sent_at, message_id, sender_handle, sender_id, content
		FROM match_messages
		WHERE match_id = ?
		ORDER BY sent_at ASC
		LIMIT ?
	`

	iter := r.db.QueryWithContext(ctx, query, gocql.UUID(matchID), limit).Iter()

	var messages []*domain.ChatMessage
	for {
		var (
			mid, msgID gocql.UUID
			senderID   *gocql.UUID
			handle     string
			msg        domain.ChatMessage
		)
		if !iter.Scan(&mid, &msg.SentAt, &msgID, &handle, &senderID, &msg.Text) {
			break
		}
		msg.MatchID = uuid.UUID(mid)
		msg.MessageID = uuid.UUID(msgID)
		msg.SenderConn = domain.ConnID(handle)
		if senderID != nil {
			msg.SenderID = uuid.UUID(*senderID)
		}
		messages = append(messages, &msg)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}

	return messages, nil
}

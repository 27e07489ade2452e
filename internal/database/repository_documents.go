package database

import (
	"context"
	"fmt"
)

// ============================================================================
// DOCUMENTS
// ============================================================================

// CreateDocument inserts a document metadata record
func (r *Repository) CreateDocument(ctx context.Context, d *Document) error {
	query := `
		INSERT INTO documents (
			name, file_key, content_type, size_bytes, uploaded_by,
			entity_kind, entity_id, esign_envelope_id, esign_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		d.Name, d.FileKey, d.ContentType, d.SizeBytes, d.UploadedBy,
		d.EntityKind, d.EntityID, d.ESignEnvelopeID, d.ESignStatus,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// GetDocumentByID retrieves a document by ID
func (r *Repository) GetDocumentByID(ctx context.Context, id string) (*Document, error) {
	query := `
		SELECT id, name, file_key, content_type, size_bytes, uploaded_by,
		       entity_kind, entity_id, esign_envelope_id, esign_status, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	d := &Document{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Name, &d.FileKey, &d.ContentType, &d.SizeBytes, &d.UploadedBy,
		&d.EntityKind, &d.EntityID, &d.ESignEnvelopeID, &d.ESignStatus, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocumentsForEntity retrieves all documents attached to one entity
func (r *Repository) GetDocumentsForEntity(ctx context.Context, kind EntityKind, entityID string) ([]*Document, error) {
	query := `
		SELECT id, name, file_key, content_type, size_bytes, uploaded_by,
		       entity_kind, entity_id, esign_envelope_id, esign_status, created_at, updated_at
		FROM documents
		WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, kind, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []*Document
	for rows.Next() {
		d := &Document{}
		err := rows.Scan(&d.ID, &d.Name, &d.FileKey, &d.ContentType, &d.SizeBytes, &d.UploadedBy,
			&d.EntityKind, &d.EntityID, &d.ESignEnvelopeID, &d.ESignStatus, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, err
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

// GetDocumentByEnvelopeID finds the document tied to an e-sign envelope
func (r *Repository) GetDocumentByEnvelopeID(ctx context.Context, envelopeID string) (*Document, error) {
	query := `
		SELECT id, name, file_key, content_type, size_bytes, uploaded_by,
		       entity_kind, entity_id, esign_envelope_id, esign_status, created_at, updated_at
		FROM documents
		WHERE esign_envelope_id = $1
	`
	d := &Document{}
	err := r.db.Pool.QueryRow(ctx, query, envelopeID).Scan(
		&d.ID, &d.Name, &d.FileKey, &d.ContentType, &d.SizeBytes, &d.UploadedBy,
		&d.EntityKind, &d.EntityID, &d.ESignEnvelopeID, &d.ESignStatus, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDocumentESign updates a document's e-sign envelope binding and status
func (r *Repository) UpdateDocumentESign(ctx context.Context, id string, envelopeID, status *string) error {
	query := `
		UPDATE documents
		SET esign_envelope_id = $2, esign_status = $3
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, id, envelopeID, status)
	return err
}

// DeleteDocument removes a document metadata record
func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// ============================================================================
// CONVERSATIONS AND MESSAGES
// ============================================================================

// CreateConversation creates a thread and registers its participants in one
// transaction
func (r *Repository) CreateConversation(ctx context.Context, c *Conversation) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (subject, created_by)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, c.Subject, c.CreatedBy).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	for _, userID := range c.ParticipantIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, c.ID, userID)
		if err != nil {
			return fmt.Errorf("failed to add participant %s: %w", userID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetConversationsForUser retrieves all threads a user participates in
func (r *Repository) GetConversationsForUser(ctx context.Context, userID string) ([]*Conversation, error) {
	query := `
		SELECT c.id, c.subject, c.created_by, c.created_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		c := &Conversation{}
		if err := rows.Scan(&c.ID, &c.Subject, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range conversations {
		participants, err := r.getParticipants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.ParticipantIDs = participants
	}
	return conversations, nil
}

// IsConversationParticipant reports whether a user belongs to a thread
func (r *Repository) IsConversationParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) getParticipants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateMessage appends a message to a conversation
func (r *Repository) CreateMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (conversation_id, sender_user_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, sent_at
	`
	return r.db.Pool.QueryRow(ctx, query, m.ConversationID, m.SenderUserID, m.Body).
		Scan(&m.ID, &m.SentAt)
}

// GetMessages retrieves a conversation's messages oldest first
func (r *Repository) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, sender_user_id, body, sent_at, read_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderUserID, &m.Body, &m.SentAt, &m.ReadAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkMessagesRead stamps all of a conversation's unread messages for a reader
func (r *Repository) MarkMessagesRead(ctx context.Context, conversationID, readerUserID string) error {
	query := `
		UPDATE messages
		SET read_at = CURRENT_TIMESTAMP
		WHERE conversation_id = $1 AND read_at IS NULL
		  AND (sender_user_id IS NULL OR sender_user_id <> $2)
	`
	_, err := r.db.Pool.Exec(ctx, query, conversationID, readerUserID)
	return err
}

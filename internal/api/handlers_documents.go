package api

import (
	"net/http"
	"strconv"
	"time"

	"investment-platform/internal/database"
	"investment-platform/internal/esign"
	"investment-platform/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ============================================================================
// DOCUMENTS
// ============================================================================

type createDocumentRequest struct {
	Name        string `json:"name" binding:"required"`
	FileKey     string `json:"file_key" binding:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	EntityKind  string `json:"entity_kind" binding:"required"`
	EntityID    string `json:"entity_id" binding:"required"`
}

func (s *Server) handleCreateDocument(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	kind := database.EntityKind(req.EntityKind)
	if !database.ValidEntityKind(kind) {
		errorResponse(c, http.StatusBadRequest, "invalid entity kind: "+req.EntityKind)
		return
	}

	uploadedBy := s.getUserID(c)
	doc := &database.Document{
		ID:          uuid.New().String(),
		Name:        req.Name,
		FileKey:     req.FileKey,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		UploadedBy:  &uploadedBy,
		EntityKind:  kind,
		EntityID:    req.EntityID,
	}

	if err := s.repo.CreateDocument(c.Request.Context(), doc); err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.eventBus.PublishDocumentUploaded(doc.ID, string(doc.EntityKind), doc.EntityID)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": doc})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.repo.GetDocumentByID(c.Request.Context(), c.Param("id"))
	if err != nil || doc == nil {
		errorResponse(c, http.StatusNotFound, "document not found")
		return
	}
	successResponse(c, doc)
}

func (s *Server) handleGetEntityDocuments(c *gin.Context) {
	kind := database.EntityKind(c.Param("kind"))
	if !database.ValidEntityKind(kind) {
		errorResponse(c, http.StatusBadRequest, "invalid entity kind: "+c.Param("kind"))
		return
	}

	docs, err := s.repo.GetDocumentsForEntity(c.Request.Context(), kind, c.Param("entityID"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, docs)
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	if err := s.repo.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, gin.H{"deleted": c.Param("id")})
}

// ============================================================================
// E-SIGNATURE
// ============================================================================

type sendForSignatureRequest struct {
	Signers []esign.Signer `json:"signers" binding:"required"`
}

func (s *Server) handleSendForSignature(c *gin.Context) {
	if s.esignService == nil || !s.esignService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "e-signature provider not configured")
		return
	}

	var req sendForSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	envelopeID, err := s.esignService.SendForSignature(c.Request.Context(), c.Param("id"), req.Signers)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	successResponse(c, gin.H{"envelope_id": envelopeID})
}

type voidEnvelopeRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleVoidEnvelope(c *gin.Context) {
	if s.esignService == nil || !s.esignService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "e-signature provider not configured")
		return
	}

	var req voidEnvelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.esignService.VoidEnvelope(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	successResponse(c, gin.H{"voided": c.Param("id")})
}

// ============================================================================
// CONVERSATIONS & MESSAGES
// ============================================================================

type createConversationRequest struct {
	Subject        string   `json:"subject" binding:"required"`
	ParticipantIDs []string `json:"participant_ids" binding:"required"`
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// The creator is always a participant
	participants := req.ParticipantIDs
	found := false
	for _, p := range participants {
		if p == userID {
			found = true
			break
		}
	}
	if !found {
		participants = append(participants, userID)
	}

	conv := &database.Conversation{
		ID:             uuid.New().String(),
		Subject:        req.Subject,
		CreatedBy:      &userID,
		ParticipantIDs: participants,
	}

	if err := s.repo.CreateConversation(c.Request.Context(), conv); err != nil {
		s.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": conv})
}

func (s *Server) handleGetConversations(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	conversations, err := s.repo.GetConversationsForUser(c.Request.Context(), userID)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, conversations)
}

// requireParticipant rejects callers outside the conversation
func (s *Server) requireParticipant(c *gin.Context, conversationID, userID string) bool {
	ok, err := s.repo.IsConversationParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		s.handleServiceError(c, err)
		return false
	}
	if !ok {
		errorResponse(c, http.StatusForbidden, "not a participant in this conversation")
		return false
	}
	return true
}

func (s *Server) handleGetMessages(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	conversationID := c.Param("id")
	if !s.requireParticipant(c, conversationID, userID) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := s.repo.GetMessages(c.Request.Context(), conversationID, limit, offset)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, messages)
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	conversationID := c.Param("id")
	if !s.requireParticipant(c, conversationID, userID) {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	msg := &database.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderUserID:   &userID,
		Body:           req.Body,
		SentAt:         time.Now().UTC(),
	}

	if err := s.repo.CreateMessage(c.Request.Context(), msg); err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventMessageSent,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"message_id":      msg.ID,
			"sender_user_id":  userID,
		},
	})

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": msg})
}

func (s *Server) handleMarkMessagesRead(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	conversationID := c.Param("id")
	if !s.requireParticipant(c, conversationID, userID) {
		return
	}

	if err := s.repo.MarkMessagesRead(c.Request.Context(), conversationID, userID); err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, gin.H{"marked_read": conversationID})
}

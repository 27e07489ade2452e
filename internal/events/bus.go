package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventStructureCreated    EventType = "STRUCTURE_CREATED"
	EventStructureUpdated    EventType = "STRUCTURE_UPDATED"
	EventInvestorAdded       EventType = "INVESTOR_ADDED"
	EventLadderReplaced      EventType = "LADDER_REPLACED"
	EventCapitalCallCreated  EventType = "CAPITAL_CALL_CREATED"
	EventCapitalCallSent     EventType = "CAPITAL_CALL_SENT"
	EventPaymentRecorded     EventType = "PAYMENT_RECORDED"
	EventDistributionCreated EventType = "DISTRIBUTION_CREATED"
	EventWaterfallApplied    EventType = "WATERFALL_APPLIED"
	EventDistributionPaid    EventType = "DISTRIBUTION_PAID"
	EventInvestmentCreated   EventType = "INVESTMENT_CREATED"
	EventInvestmentExited    EventType = "INVESTMENT_EXITED"
	EventDocumentUploaded    EventType = "DOCUMENT_UPLOADED"
	EventESignCompleted      EventType = "ESIGN_COMPLETED"
	EventKYCUpdated          EventType = "KYC_UPDATED"
	EventSubscriptionUpdated EventType = "SUBSCRIPTION_UPDATED"
	EventMessageSent         EventType = "MESSAGE_SENT"
	EventUserLogout          EventType = "USER_LOGOUT"
	EventError               EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishCapitalCallCreated publishes a capital call created event
func (eb *EventBus) PublishCapitalCallCreated(callID, structureID string, callNumber int, totalAmount float64, investors int) {
	eb.Publish(Event{
		Type: EventCapitalCallCreated,
		Data: map[string]interface{}{
			"capital_call_id": callID,
			"structure_id":    structureID,
			"call_number":     callNumber,
			"total_amount":    totalAmount,
			"investors":       investors,
		},
	})
}

// PublishCapitalCallSent publishes a capital call sent event
func (eb *EventBus) PublishCapitalCallSent(callID, structureID string) {
	eb.Publish(Event{
		Type: EventCapitalCallSent,
		Data: map[string]interface{}{
			"capital_call_id": callID,
			"structure_id":    structureID,
		},
	})
}

// PublishPaymentRecorded publishes a payment recorded event
func (eb *EventBus) PublishPaymentRecorded(callID string, amount, totalPaid, totalUnpaid float64, status string) {
	eb.Publish(Event{
		Type: EventPaymentRecorded,
		Data: map[string]interface{}{
			"capital_call_id": callID,
			"amount":          amount,
			"total_paid":      totalPaid,
			"total_unpaid":    totalUnpaid,
			"status":          status,
		},
	})
}

// PublishWaterfallApplied publishes a waterfall applied event
func (eb *EventBus) PublishWaterfallApplied(distributionID, structureID string, tierAmounts [4]float64, lpTotal, gpTotal, managementFee float64) {
	eb.Publish(Event{
		Type: EventWaterfallApplied,
		Data: map[string]interface{}{
			"distribution_id": distributionID,
			"structure_id":    structureID,
			"tier1_amount":    tierAmounts[0],
			"tier2_amount":    tierAmounts[1],
			"tier3_amount":    tierAmounts[2],
			"tier4_amount":    tierAmounts[3],
			"lp_total":        lpTotal,
			"gp_total":        gpTotal,
			"management_fee":  managementFee,
		},
	})
}

// PublishDistributionPaid publishes a distribution paid event
func (eb *EventBus) PublishDistributionPaid(distributionID, structureID string, totalAmount float64) {
	eb.Publish(Event{
		Type: EventDistributionPaid,
		Data: map[string]interface{}{
			"distribution_id": distributionID,
			"structure_id":    structureID,
			"total_amount":    totalAmount,
		},
	})
}

// PublishInvestmentExited publishes an investment exited event
func (eb *EventBus) PublishInvestmentExited(investmentID, structureID string, exitValue, realizedGain float64) {
	eb.Publish(Event{
		Type: EventInvestmentExited,
		Data: map[string]interface{}{
			"investment_id": investmentID,
			"structure_id":  structureID,
			"exit_value":    exitValue,
			"realized_gain": realizedGain,
		},
	})
}

// PublishDocumentUploaded publishes a document uploaded event
func (eb *EventBus) PublishDocumentUploaded(documentID, entityKind, entityID string) {
	eb.Publish(Event{
		Type: EventDocumentUploaded,
		Data: map[string]interface{}{
			"document_id": documentID,
			"entity_kind": entityKind,
			"entity_id":   entityID,
		},
	})
}

// PublishMessageSent publishes a message sent event
func (eb *EventBus) PublishMessageSent(conversationID, messageID, senderUserID string) {
	eb.Publish(Event{
		Type: EventMessageSent,
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"message_id":      messageID,
			"sender_user_id":  senderUserID,
		},
	})
}

// PublishUserLogout publishes a user logout event
func (eb *EventBus) PublishUserLogout(userID string) {
	eb.Publish(Event{
		Type: EventUserLogout,
		Data: map[string]interface{}{
			"user_id": userID,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}

// Package notify publishes booking domain events to collaborators
// (notification service, admin dashboards) over a Redis channel.
// Delivery is best effort: a publish failure is logged and dropped,
// never propagated back into the unit of work that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-service/internal/booking"
)

const (
	EventSlotPendingCreated = "SLOT_PENDING_CREATED"
	EventSlotApproved       = "SLOT_APPROVED"
	EventSlotRejected       = "SLOT_REJECTED"
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingConfirmed   = "BOOKING_CONFIRMED"
	EventBookingCompleted   = "BOOKING_COMPLETED"
	EventBookingCancelled   = "BOOKING_CANCELLED"
)

type event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

type RedisNotifier struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		log:     log,
	}
}

func (n *RedisNotifier) publish(ctx context.Context, eventType string, payload map[string]any) {
	data, err := json.Marshal(event{
		Type:    eventType,
		Payload: payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		n.log.Error().Err(err).Str("event", eventType).Msg("marshal event")
		return
	}

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		n.log.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

func slotPayload(slot *booking.TimeSlot) map[string]any {
	return map[string]any{
		"slot_id":   slot.ID.String(),
		"doctor_id": slot.DoctorID.String(),
		"date":      slot.Date.Format("2006-01-02"),
		"start":     slot.Start.String(),
		"end":       slot.End.String(),
		"status":    string(slot.Status),
	}
}

func bookingPayload(b *booking.Booking) map[string]any {
	return map[string]any{
		"booking_id": b.ID.String(),
		"patient_id": b.PatientID.String(),
		"doctor_id":  b.DoctorID.String(),
		"slot_id":    b.SlotID.String(),
		"status":     string(b.Status),
	}
}

func (n *RedisNotifier) SlotPendingCreated(ctx context.Context, slot *booking.TimeSlot) {
	n.publish(ctx, EventSlotPendingCreated, slotPayload(slot))
}

func (n *RedisNotifier) SlotApproved(ctx context.Context, slot *booking.TimeSlot) {
	n.publish(ctx, EventSlotApproved, slotPayload(slot))
}

func (n *RedisNotifier) SlotRejected(ctx context.Context, slot *booking.TimeSlot) {
	n.publish(ctx, EventSlotRejected, slotPayload(slot))
}

func (n *RedisNotifier) BookingCreated(ctx context.Context, b *booking.Booking) {
	n.publish(ctx, EventBookingCreated, bookingPayload(b))
}

func (n *RedisNotifier) BookingConfirmed(ctx context.Context, b *booking.Booking) {
	n.publish(ctx, EventBookingConfirmed, bookingPayload(b))
}

func (n *RedisNotifier) BookingCompleted(ctx context.Context, b *booking.Booking) {
	n.publish(ctx, EventBookingCompleted, bookingPayload(b))
}

func (n *RedisNotifier) BookingCancelled(ctx context.Context, b *booking.Booking, reason string) {
	payload := bookingPayload(b)
	payload["reason"] = reason
	n.publish(ctx, EventBookingCancelled, payload)
}

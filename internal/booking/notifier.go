package booking

import "context"

// Notifier receives domain events strictly after the unit of work that
// produced them has committed. Implementations are best-effort: failures
// are logged by the implementation and never surface to the caller.
type Notifier interface {
	SlotPendingCreated(ctx context.Context, slot *TimeSlot)
	SlotApproved(ctx context.Context, slot *TimeSlot)
	SlotRejected(ctx context.Context, slot *TimeSlot)
	BookingCreated(ctx context.Context, b *Booking)
	BookingConfirmed(ctx context.Context, b *Booking)
	BookingCompleted(ctx context.Context, b *Booking)
	BookingCancelled(ctx context.Context, b *Booking, reason string)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) SlotPendingCreated(context.Context, *TimeSlot)      {}
func (NopNotifier) SlotApproved(context.Context, *TimeSlot)            {}
func (NopNotifier) SlotRejected(context.Context, *TimeSlot)            {}
func (NopNotifier) BookingCreated(context.Context, *Booking)           {}
func (NopNotifier) BookingConfirmed(context.Context, *Booking)         {}
func (NopNotifier) BookingCompleted(context.Context, *Booking)         {}
func (NopNotifier) BookingCancelled(context.Context, *Booking, string) {}

package enums

// NotificationKind labels the domain fact carried by a notification.
type NotificationKind string

const (
	NotificationRunStateChanged       NotificationKind = "run_state_changed"
	NotificationBidPlaced             NotificationKind = "bid_placed"
	NotificationBidRetracted          NotificationKind = "bid_retracted"
	NotificationPurchaseRecorded      NotificationKind = "purchase_recorded"
	NotificationPurchaseCleared       NotificationKind = "purchase_cleared"
	NotificationDistributionReady     NotificationKind = "distribution_ready"
	NotificationReassignmentRequested NotificationKind = "reassignment_requested"
	NotificationReassignmentResolved  NotificationKind = "reassignment_resolved"
	NotificationParticipantJoined     NotificationKind = "participant_joined"
	NotificationParticipantLeft       NotificationKind = "participant_left"
)

// String implements fmt.Stringer.
func (k NotificationKind) String() string {
	return string(k)
}

package correlator

import (
	"net/netip"

	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// A Notification is one asynchronous report from the host simulator. The set
// of notification kinds is closed; the correlator switches over all of them.
type Notification interface {
	notification()
}

// Attachment reports that an entity connected to a cell.
type Attachment struct {
	Entity registry.EntityID
	Cell   registry.CellID
}

// HandoverStart reports that a handover has been prepared. The handover can
// still fail, so it does not move the entity.
type HandoverStart struct {
	Entity   registry.EntityID
	FromCell registry.CellID
	ToCell   registry.CellID
}

// HandoverComplete reports that an entity is now served by NewCell. It does
// not tell which cell was left.
type HandoverComplete struct {
	Entity  registry.EntityID
	NewCell registry.CellID
}

// MeasurementReport carries the encoded serving-cell RSRP and RSRQ received
// from an entity.
type MeasurementReport struct {
	Entity      registry.EntityID
	Cell        registry.CellID
	EncodedRSRP uint8
	EncodedRSRQ uint8
}

// UEMeasurement is a serving or neighbour cell measurement already decoded
// on the terminal side.
type UEMeasurement struct {
	Entity      registry.EntityID
	Cell        registry.CellID
	RSRP        float64
	RSRQ        float64
	ServingCell bool
}

// PhySample is a cell-scoped PHY-layer sample of RSRP (dBm) and SINR (dB).
type PhySample struct {
	Cell registry.CellID
	RSRP float64
	SINR float64
}

// AddressAssigned reports the network address given to an entity.
type AddressAssigned struct {
	Entity  registry.EntityID
	Address netip.Addr
}

func (Attachment) notification()        {}
func (HandoverStart) notification()     {}
func (HandoverComplete) notification()  {}
func (MeasurementReport) notification() {}
func (UEMeasurement) notification()     {}
func (PhySample) notification()         {}
func (AddressAssigned) notification()   {}

// NotificationEvent delivers a notification to the correlator at a given
// time.
type NotificationEvent struct {
	sim.EventBase
	Payload Notification
}

// NewNotificationEvent creates an event that the handler receives at time t.
func NewNotificationEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	payload Notification,
) NotificationEvent {
	return NotificationEvent{
		EventBase: sim.NewEventBase(t, handler),
		Payload:   payload,
	}
}

// KindName is a short stable name of the notification kind.
func KindName(n Notification) string {
	switch n.(type) {
	case Attachment:
		return "attach"
	case HandoverStart:
		return "handover_start"
	case HandoverComplete:
		return "handover_complete"
	case MeasurementReport:
		return "measurement_report"
	case UEMeasurement:
		return "ue_measurement"
	case PhySample:
		return "phy"
	case AddressAssigned:
		return "address"
	default:
		return "unknown"
	}
}

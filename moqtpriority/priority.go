// Package moqtpriority packs publisher/subscriber priority and sequence
// position into the signed 64-bit send order used to schedule MoQT data
// streams (C9). It is grounded on moqt/src/moqt_priority.rs; the
// session layer (internal/moqtsession) returns the resulting SendOrder
// to its caller and does not apply it to the transport itself.
package moqtpriority

// Priority is a priority value assignable to a track or an individual
// stream, by either the publisher or the subscriber. Lower values are
// higher priorities: 0 is the highest.
type Priority = uint8

// DeliveryOrder indicates the desired order of delivering groups
// associated with a track.
type DeliveryOrder uint8

const (
	Ascending  DeliveryOrder = 0x01
	Descending DeliveryOrder = 0x02
)

// SendOrder is the 64-bit scheduling key assigned to a MoQT data
// stream: larger values are sent first.
type SendOrder = int64

// ControlStreamSendOrder is always used for the MoQT control stream,
// outranking every data stream.
const ControlStreamSendOrder SendOrder = 1<<63 - 1

// ProbeStreamSendOrder is used for MoQT bandwidth probe streams,
// always losing to every data stream.
const ProbeStreamSendOrder SendOrder = -1 << 63

func flip(numBits uint, number uint64) uint64 {
	return (uint64(1)<<numBits - 1) - number
}

// onlyLowestNBits masks value down to its lowest n bits. The Rust
// source's helper of the same name takes n+1 bits instead, which would
// let a 46-bit group ID collide with the publisher-priority bits above
// it; the bit layout spelled out in the design notes (8/8/46, or
// 8/8/26/20 with a subgroup) is authoritative here.
func onlyLowestNBits(n uint, value uint64) uint64 {
	return value & (uint64(1)<<n - 1)
}

// ForStream computes the send order for a MoQT data stream carrying an
// entire group (subgroupID == nil), packing the value as:
//
//	63:     always zero (positive number)
//	62:     0 for data streams (not used here; control/probe are the
//	        two reserved sentinels above)
//	54-61:  subscriber priority (flipped: higher priority sorts higher)
//	46-53:  publisher priority (flipped)
//	0-45:   group ID (flipped if ascending delivery order)
func ForStream(subscriberPriority, publisherPriority Priority, groupID uint64, order DeliveryOrder) SendOrder {
	trackBits := (flip(8, uint64(subscriberPriority)) << 54) | (flip(8, uint64(publisherPriority)) << 46)
	groupID = onlyLowestNBits(46, groupID)
	if order == Ascending {
		groupID = flip(46, groupID)
	}
	return SendOrder(trackBits | groupID)
}

// ForStreamWithSubgroup computes the send order for a MoQT data stream
// carrying a single subgroup within a group, splitting the low 46 bits
// into a 26-bit group ID and a 20-bit subgroup ID:
//
//	20-45:          group ID (flipped if ascending)
//	0-19:           subgroup ID (always flipped, so lower subgroup IDs
//	                within a group are sent first)
func ForStreamWithSubgroup(subscriberPriority, publisherPriority Priority, groupID, subgroupID uint64, order DeliveryOrder) SendOrder {
	trackBits := (flip(8, uint64(subscriberPriority)) << 54) | (flip(8, uint64(publisherPriority)) << 46)
	groupID = onlyLowestNBits(26, groupID)
	subgroupID = onlyLowestNBits(20, subgroupID)
	if order == Ascending {
		groupID = flip(26, groupID)
	}
	subgroupID = flip(20, subgroupID)
	return SendOrder(trackBits | (groupID << 20) | subgroupID)
}

// WithUpdatedSubscriberPriority returns sendOrder with its subscriber
// priority bits replaced, leaving the publisher priority and
// group/subgroup bits untouched.
func WithUpdatedSubscriberPriority(sendOrder SendOrder, subscriberPriority Priority) SendOrder {
	base := onlyLowestNBits(54, uint64(sendOrder))
	subBits := flip(8, uint64(subscriberPriority)) << 54
	return SendOrder(base | subBits)
}

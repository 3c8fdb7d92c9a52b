package wire

// SubscribeErrorCode is the application-level reason a SUBSCRIBE was
// rejected (restored from moqt/src/message/subscribe_error.rs, dropped
// from the distilled spec's prose but not excluded by any Non-goal).
type SubscribeErrorCode uint64

const (
	SubscribeErrorInternal        SubscribeErrorCode = 0
	SubscribeErrorInvalidRange    SubscribeErrorCode = 1
	SubscribeErrorRetryTrackAlias SubscribeErrorCode = 2
)

// SubscribeDoneCode is the reason a subscription ended
// (moqt/src/message/subscribe_done.rs).
type SubscribeDoneCode uint64

const (
	SubscribeDoneUnsubscribed      SubscribeDoneCode = 0x0
	SubscribeDoneInternalError     SubscribeDoneCode = 0x1
	SubscribeDoneUnauthorized      SubscribeDoneCode = 0x2
	SubscribeDoneTrackEnded        SubscribeDoneCode = 0x3
	SubscribeDoneSubscriptionEnded SubscribeDoneCode = 0x4
	SubscribeDoneGoingAway         SubscribeDoneCode = 0x5
	SubscribeDoneExpired           SubscribeDoneCode = 0x6
)

// AnnounceErrorCode is the reason an ANNOUNCE was rejected
// (moqt/src/message/announce_error.rs).
type AnnounceErrorCode uint64

const (
	AnnounceErrorInternal             AnnounceErrorCode = 0
	AnnounceErrorAnnounceNotSupported AnnounceErrorCode = 1
)

// TrackStatusCode describes the publication state of a track
// (moqt/src/message/track_status.rs).
type TrackStatusCode uint64

const (
	TrackStatusInProgress         TrackStatusCode = 0x0
	TrackStatusDoesNotExist       TrackStatusCode = 0x1
	TrackStatusNotYetBegun        TrackStatusCode = 0x2
	TrackStatusFinished           TrackStatusCode = 0x3
	TrackStatusStatusNotAvailable TrackStatusCode = 0x4
)

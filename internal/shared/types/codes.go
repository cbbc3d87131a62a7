package types

// ErrorCode is the application error code carried by a failed envelope.
type ErrorCode int

const (
	ErrBadRequest       ErrorCode = 1
	ErrInternal         ErrorCode = 2
	ErrCredential       ErrorCode = 3
	ErrServerRunning    ErrorCode = 4
	ErrServerNotRunning ErrorCode = 5
	ErrRemote           ErrorCode = 6
	ErrInvalidConfig    ErrorCode = 7
	ErrPasswordRule     ErrorCode = 8
	ErrDupUserName      ErrorCode = 9
	ErrRequiresAuth     ErrorCode = 10
	ErrBackup           ErrorCode = 11
	ErrAgain            ErrorCode = 12
)

// InfoCode identifies a transient notification.
type InfoCode int

const (
	InfoSnapshotDone     InfoCode = 1
	InfoSnapshotError    InfoCode = 2
	InfoNoSnapshot       InfoCode = 3
	InfoErrRunnerPrepare InfoCode = 100
	InfoErrRunnerStop    InfoCode = 101
)

// EventCode is the status code pushed on the status stream.
type EventCode int

const (
	// EventDisconnected is never sent by the server; the client reports it
	// while the stream is down.
	EventDisconnected  EventCode = 0
	EventShutdown      EventCode = 1
	EventSysInit       EventCode = 2
	EventGameDownload  EventCode = 3
	EventWorldDownload EventCode = 4
	EventWorldPrepare  EventCode = 5
	EventWorldUpload   EventCode = 6
	EventLoading       EventCode = 7
	EventRunning       EventCode = 8
	EventStopping      EventCode = 9
	EventCrashed       EventCode = 10
	EventClean         EventCode = 11
	EventGameErr       EventCode = 50
	EventWorldErr      EventCode = 51
	EventLaunchErr     EventCode = 52
	EventStopped       EventCode = 100
	EventCreateRunner  EventCode = 101
	EventWaitConn      EventCode = 102
	EventConnLost      EventCode = 103
	EventStopRunner    EventCode = 104
	EventManualSetup   EventCode = 105
)

// Retryable reports whether the UI should offer a retry for this code.
func (c EventCode) Retryable() bool {
	return c == EventGameErr || c == EventWorldErr || c == EventLaunchErr
}

// PageCode selects the top-level screen.
type PageCode int

const (
	PageLaunch      PageCode = 1
	PageLoading     PageCode = 2
	PageRunning     PageCode = 3
	PageManualSetup PageCode = 4
)

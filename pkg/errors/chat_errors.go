package errors

var (
	// Domain errors — used in service/repository
	ErrNameTaken       = AlreadyExists("display name is already in use")
	ErrReservedName    = InvalidArg("display name is reserved for system announcements")
	ErrEmptyName       = InvalidArg("display name cannot be empty")
	ErrEmptyMessage    = InvalidArg("message body cannot be empty")
	ErrUnknownCommand  = InvalidArg("unknown command")
	ErrSelfRequest     = InvalidArg("cannot send a friend request to yourself")
	ErrRequestExists   = AlreadyExists("friend request already exists")
	ErrRequestNotFound = NotFound("no pending friend request for this pair")
	ErrSessionNotFound = NotFound("unknown session token")
	ErrSessionClosed   = FailedPrecondition("session is no longer active")
)

func ErrStorage(cause error) error {
	return Wrap(CodeStorageUnavailable, "storage unavailable", cause)
}

package oops

import "errors"

/*
Kind classifies the logical failures an operation can report. Anything that is
not one of these (a broken connection, a constraint violation, a timeout) is
KindInfrastructure, which is also the zero value.

Callers are expected to switch on KindOf(err) to decide how to respond. None of
these kinds are retried by the code that produces them.
*/
type Kind int

const (
	KindInfrastructure Kind = iota
	KindCreate
	KindSectionNotFound
	KindSubsectionNotFound
	KindThreadNotFound
	KindMessageNotFound
	KindArticleNotFound
	KindInvalidPass
	KindNoSession
	KindUserNotLoggedIn
	KindFileNotFound
)

var kindNames = map[Kind]string{
	KindInfrastructure:     "Infrastructure",
	KindCreate:             "CreateError",
	KindSectionNotFound:    "SectionNotFound",
	KindSubsectionNotFound: "SubsectionNotFound",
	KindThreadNotFound:     "ThreadNotFound",
	KindMessageNotFound:    "MessageNotFound",
	KindArticleNotFound:    "ArticleNotFound",
	KindInvalidPass:        "InvalidPass",
	KindNoSession:          "NoSession",
	KindUserNotLoggedIn:    "UserNotLoggedIn",
	KindFileNotFound:       "FileNotFound",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Sentinels for use with errors.Is. They carry no stack; use Fail to produce
// an error to return.
var (
	ErrCreate             = sentinel(KindCreate)
	ErrSectionNotFound    = sentinel(KindSectionNotFound)
	ErrSubsectionNotFound = sentinel(KindSubsectionNotFound)
	ErrThreadNotFound     = sentinel(KindThreadNotFound)
	ErrMessageNotFound    = sentinel(KindMessageNotFound)
	ErrArticleNotFound    = sentinel(KindArticleNotFound)
	ErrInvalidPass        = sentinel(KindInvalidPass)
	ErrNoSession          = sentinel(KindNoSession)
	ErrUserNotLoggedIn    = sentinel(KindUserNotLoggedIn)
	ErrFileNotFound       = sentinel(KindFileNotFound)
)

func sentinel(kind Kind) *Error {
	return &Error{Message: kind.String(), Kind: kind}
}

// Fail returns a logical failure of the given kind, with a stack trace.
func Fail(kind Kind) error {
	return &Error{
		Message: kind.String(),
		Kind:    kind,
		Stack:   trace(1),
	}
}

// Is matches any error of the same logical kind, so that
// errors.Is(err, oops.ErrThreadNotFound) works regardless of where the
// failure was produced.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind == KindInfrastructure {
		return false
	}
	return e.Kind == t.Kind
}

/*
Returns the logical kind of an error, searching through wrapped errors. Errors
that carry no kind (including plain errors from other packages) are
KindInfrastructure.
*/
func KindOf(err error) Kind {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if oopsErr, ok := e.(*Error); ok && oopsErr.Kind != KindInfrastructure {
			return oopsErr.Kind
		}
	}
	return KindInfrastructure
}

// Package apierrors names the error categories api handlers use to pick an
// HTTP status and log field; the wire response itself only ever carries the
// numeric HTTP status plus a human message, per the REST envelope contract.
package apierrors

type Code string

const (
	InternalError      Code = "internal_error"
	ValidationError    Code = "validation_error"
	InvalidBody        Code = "invalid_body"
	Unauthorized       Code = "unauthorized"
	Forbidden          Code = "forbidden"
	NotFound           Code = "not_found"
	RateLimited        Code = "rate_limited"
	ServiceUnavailable Code = "service_unavailable"

	InvalidCredentials Code = "invalid_credentials"
	InvalidUsername    Code = "invalid_username"
	InvalidPassword    Code = "invalid_password"
	UnknownSession     Code = "unknown_session"

	UnknownUser    Code = "unknown_user"
	UnknownFriend  Code = "unknown_friend"
	AlreadyFriends Code = "already_friends"

	UnknownGroup    Code = "unknown_group"
	AlreadyMember   Code = "already_member"
	NotMember       Code = "not_member"
	UnknownMessage  Code = "unknown_message"
	NotMessageOwner Code = "not_message_owner"
)

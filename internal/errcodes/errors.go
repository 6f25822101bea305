package errcodes

import "errors"

var (
	ErrInvalidTokenOrUser              = errors.New("invalid token or user")
	ErrMissingToken                    = errors.New("github token is missing")
	ErrMissingOwner                    = errors.New("github owner is missing")
	ErrInvalidSetting                  = errors.New("invalid setting")
	ErrRepositoryMustBeInFormOwnerRepo = errors.New("repository must be in the form of 'owner/repo'")
	ErrNoWebhookPayload                = errors.New("no webhook payload given")
)

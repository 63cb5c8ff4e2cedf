package user

import "errors"

var (
	ErrInvalidToken           = errors.New("invalid or missing access token")
	ErrAdminPrivilegeRequired = errors.New("admin privilege required")
	ErrEmployeeLinkRequired   = errors.New("token is not linked to an employee")
)

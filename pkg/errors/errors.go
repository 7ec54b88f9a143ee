package errors

import "errors"

var (
	ErrUserNotFound                = errors.New("user not found")
	ErrTransferNotFound            = errors.New("transfer not found")
	ErrSettingNotFound             = errors.New("setting not found")
	ErrLoanNotFound                = errors.New("loan not found")
	ErrCardNotFound                = errors.New("card not found")
	ErrNotificationNotFound        = errors.New("notification not found")
	ErrUnauthorized                = errors.New("unauthorized")
	ErrSequenceViolation           = errors.New("prior step must be verified first")
	ErrStepAlreadyVerified         = errors.New("step already verified")
	ErrUnknownStep                 = errors.New("unknown verification step")
	ErrInvalidCode                 = errors.New("invalid verification code")
	ErrInvalidOtp                  = errors.New("invalid otp")
	ErrOtpExpired                  = errors.New("otp expired")
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrDuplicatePendingApplication = errors.New("a pending application already exists")
	ErrWrongRegion                 = errors.New("operation not valid for transfer region")
	ErrTransfersDisabled           = errors.New("transfers are disabled")
	ErrTransferNotPending          = errors.New("transfer is not pending")
	ErrBalanceLocked               = errors.New("balance is locked")
	ErrRequestAlreadyProcessed     = errors.New("request already processed")
	ErrVersionConflict             = errors.New("transfer was modified concurrently")
	ErrInvalidCredentials          = errors.New("invalid credentials")
	ErrUsernameExists              = errors.New("username already exists")
	ErrInvalidInput                = errors.New("invalid input")
	ErrNilUser                     = errors.New("user is nil")
	ErrNilTransfer                 = errors.New("transfer is nil")
	ErrInternal                    = errors.New("internal error")
)

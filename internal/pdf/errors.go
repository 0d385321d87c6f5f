package pdf

// Error はAPIで利用者に返すエラーを表します。
//
// Code は処理段階ごとのエラー分類です:
// INVALID_INPUT / ENCRYPTED_SOURCE / UNSUPPORTED_PDF / MARGIN_TOO_LARGE /
// LIMIT_EXCEEDED / OUTPUT_WRITE_FAILURE
type Error struct {
	Code    string
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

func newError(code, message string, wrapped error) *Error {
	return &Error{Code: code, Message: message, wrapped: wrapped}
}

package response

// AppError 接口层错误：响应码、对外文案与内部原因
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误，未指定响应码时按 500 处理
func WrapError(code int, message string, err error) *AppError {
	if code == 0 {
		code = CodeInternal
	}
	if message == "" {
		message = "internal error"
	}
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

package extraction

import "errors"

// ValidationError возвращается для некорректного файла до любого сетевого вызова.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// ConfigError возвращается, когда inference-эндпоинт не сконфигурирован.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

// ExtractionError возвращается при неустранимой ошибке извлечения.
type ExtractionError struct {
	msg   string
	cause error
}

func (e *ExtractionError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}

	return e.msg
}

func (e *ExtractionError) Unwrap() error {
	return e.cause
}

// errRateLimited поглощается циклом ретраев и не виден вызывающему коду.
var errRateLimited = errors.New("extraction endpoint rate limited")

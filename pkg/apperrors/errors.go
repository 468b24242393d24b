package apperrors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code はパイプラインの失敗種別です。
type Code string

const (
	CodeSchema           Code = "SCHEMA_ERROR"
	CodeEmptyResult      Code = "EMPTY_RESULT"
	CodeModelInput       Code = "MODEL_INPUT_ERROR"
	CodeParse            Code = "PARSE_ERROR"
	CodeModelUnavailable Code = "MODEL_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Metadata はコードをクライアントへどう返すかを表します。
type Metadata struct {
	HTTPStatus    int
	PublicMessage string
	// ExposeMessage が true ならエラー本文をそのまま返す
	ExposeMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeSchema: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "required column or field is missing",
		ExposeMessage: true,
	},
	CodeEmptyResult: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "no usable rows",
		ExposeMessage: true,
	},
	CodeModelInput: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "feature vector does not match the model",
		ExposeMessage: true,
	},
	CodeParse: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "input could not be parsed",
		ExposeMessage: true,
	},
	CodeModelUnavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		PublicMessage: "model is not loaded",
		ExposeMessage: true,
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "internal server error",
	},
}

// MetadataFor はコードのメタデータを返します。未知のコードは内部エラー扱い。
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error はリクエスト単位の型付きエラーです。
type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// Schema 必須の列・フィールドが無い
func Schema(format string, args ...any) *Error { return Newf(CodeSchema, format, args...) }

// EmptyResult 正しいリクエストだが結果が0行
func EmptyResult(format string, args ...any) *Error { return Newf(CodeEmptyResult, format, args...) }

// ModelInput 特徴量がモデルの期待と一致しない
func ModelInput(format string, args ...any) *Error { return Newf(CodeModelInput, format, args...) }

// Parse 日付・数値・ペイロードを解釈できない
func Parse(format string, args ...any) *Error { return Newf(CodeParse, format, args...) }

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As はエラーチェーンから型付きエラーを取り出します。
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is はエラーが指定コードを持つかを返します。
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Public はステータスコードとクライアント向けメッセージを返します。
func Public(err error) (int, string) {
	typed := As(err)
	if typed == nil {
		meta := MetadataFor(CodeInternal)
		return meta.HTTPStatus, meta.PublicMessage
	}
	meta := MetadataFor(typed.code)
	if meta.ExposeMessage && typed.message != "" {
		return meta.HTTPStatus, typed.message
	}
	return meta.HTTPStatus, meta.PublicMessage
}

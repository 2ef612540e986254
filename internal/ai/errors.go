package ai

import (
	"errors"
	"fmt"
)

// ErrorKind 流水线错误类型
type ErrorKind string

const (
	KindNone                     ErrorKind = ""
	KindModelUnavailable         ErrorKind = "model-unavailable"
	KindGenerationEmptyOrInvalid ErrorKind = "generation-empty-or-invalid"
	KindExtractionFailed         ErrorKind = "extraction-failed"
	KindUnsafeStatement          ErrorKind = "unsafe-statement"
	KindExecutionError           ErrorKind = "execution-error"
)

// 流水线各阶段的哨兵错误
var (
	ErrModelUnavailable         = errors.New("model unavailable")
	ErrGenerationEmptyOrInvalid = errors.New("generation empty or invalid")
	ErrExtractionFailed         = errors.New("no valid SQL query found")
	ErrUnsafeStatement          = errors.New("statement is not a read-only selection")
	ErrExecutionFailed          = errors.New("query execution failed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindModelUnavailable:
		return ErrModelUnavailable
	case KindGenerationEmptyOrInvalid:
		return ErrGenerationEmptyOrInvalid
	case KindExtractionFailed:
		return ErrExtractionFailed
	case KindUnsafeStatement:
		return ErrUnsafeStatement
	case KindExecutionError:
		return ErrExecutionFailed
	default:
		return nil
	}
}

// RejectionError 带分类的流水线错误
type RejectionError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

// NewRejection 创建流水线错误
func NewRejection(kind ErrorKind, reason string, cause error) *RejectionError {
	return &RejectionError{Kind: kind, Reason: reason, Err: cause}
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is(err, ErrExtractionFailed) 这类按类型判断
func (e *RejectionError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf 返回错误对应的分类，非流水线错误返回空
func KindOf(err error) ErrorKind {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Kind
	}
	for _, k := range []ErrorKind{
		KindModelUnavailable,
		KindGenerationEmptyOrInvalid,
		KindExtractionFailed,
		KindUnsafeStatement,
		KindExecutionError,
	} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindNone
}

// IsModelUnavailable 检查是否为模型不可用错误
func IsModelUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}

// IsGenerationEmptyOrInvalid 检查是否为空生成或无SQL关键字错误
func IsGenerationEmptyOrInvalid(err error) bool {
	return errors.Is(err, ErrGenerationEmptyOrInvalid)
}

// IsExtractionFailed 检查是否为提取失败错误
func IsExtractionFailed(err error) bool {
	return errors.Is(err, ErrExtractionFailed)
}

// IsUnsafeStatement 检查是否为非只读语句错误
func IsUnsafeStatement(err error) bool {
	return errors.Is(err, ErrUnsafeStatement)
}

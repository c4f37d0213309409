package errors

import "errors"

// Kind 业务错误分类，决定对外暴露的状态码与是否透出错误信息
type Kind int

const (
	// KindInternal 基础设施错误（存储不可用、事务失败等），对外只返回通用提示
	KindInternal Kind = iota
	// KindValidation 参数或业务规则校验失败
	KindValidation
	// KindNotFound 资源不存在
	KindNotFound
	// KindConflict 并发冲突：目标已被其他操作占用
	KindConflict
	// KindForbidden 当前用户无权执行该操作
	KindForbidden
)

// Error 带分类的业务错误，作为各模块哨兵错误的底层类型
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind 返回错误分类
func (e *Error) Kind() Kind { return e.kind }

// Validation 创建业务规则类错误
func Validation(msg string) error { return &Error{kind: KindValidation, msg: msg} }

// NotFound 创建资源不存在类错误
func NotFound(msg string) error { return &Error{kind: KindNotFound, msg: msg} }

// Conflict 创建并发冲突类错误
func Conflict(msg string) error { return &Error{kind: KindConflict, msg: msg} }

// Forbidden 创建无权操作类错误
func Forbidden(msg string) error { return &Error{kind: KindForbidden, msg: msg} }

// KindOf 提取错误分类；未分类错误一律视为基础设施错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// ErrStaleState 条件更新未命中：记录状态已被其他操作修改
var ErrStaleState = Conflict("数据已被其他操作修改，请刷新后重试")

package service

import "errors"

var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotCompleted 任务未完成，不能归档
	ErrTaskNotCompleted = errors.New("task not completed")
	// ErrEmptyText 任务文本为空
	ErrEmptyText = errors.New("task text is empty")
	// ErrHandleNotFound 未登记的 username
	ErrHandleNotFound = errors.New("user handle not found")
	// ErrInvalidUser 非法用户 ID
	ErrInvalidUser = errors.New("invalid user id")
)

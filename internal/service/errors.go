// Package service 实现登录、注册、当前用户解析以及受角色限制的用户目录读取。
package service

import "errors"

var (
	// ErrInvalidCredentials 覆盖用户不存在、密码错误和角色不符三种情况，对外不区分
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrDuplicateUsername  = errors.New("用户名已存在")
	ErrDuplicateEmail     = errors.New("邮箱已存在")
	ErrUnauthorized       = errors.New("无效的身份凭证")
	ErrForbidden          = errors.New("权限不足")
	ErrUnavailable        = errors.New("服务暂时不可用")
	ErrValidation         = errors.New("请求参数错误")
)

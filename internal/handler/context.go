package handler

type ContextKey string

var (
	RoleCtxKey  ContextKey = "role"
	SubCtxKey   ContextKey = "sub"
	CallerCtx   ContextKey = "caller"
	UserInfoCtx ContextKey = "userInfo"
	JobCtx      ContextKey = "job"
)

package middlewares

const (
	ctxUserIDKey    = "auth.userID"
	ctxUserEmailKey = "auth.email"
	ctxUserRoleKey  = "auth.role"
	CtxRequestID    = "request_id"
)

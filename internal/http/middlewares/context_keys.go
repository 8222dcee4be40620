package middlewares

type ctxKey string

const (
	CtxUserID ctxKey = "userID"
	CtxRole   ctxKey = "role"
	CtxEmail  ctxKey = "email"
	KeyUserID ctxKey = "user_id"
)

// gin context keys (plain strings, gin.Context.Set wants string)
const (
	CtxRequestID = "request_id"
	CtxMessageID = "message_id"
)

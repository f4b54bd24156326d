package session

import "context"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey struct{}

// NewContext はセッションハンドルを格納したコンテキストを返す。
func NewContext(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, contextKey{}, h)
}

// FromContext はリクエストコンテキストからセッションハンドルを取得する。
// セッションミドルウェアを通過していない場合はnil, falseを返す。
func FromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(contextKey{}).(*Handle)
	return h, ok && h != nil
}

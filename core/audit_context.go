package core

import "context"

type authCtxKey string

const authCtxKeyRequestMeta authCtxKey = "cpop.request_meta"

type requestMeta struct {
	ip        *string
	userAgent *string
}

// WithRequestMeta annotates ctx so session events carry the caller's IP and user agent.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, authCtxKeyRequestMeta, requestMeta{ip: nullable(ip), userAgent: nullable(userAgent)})
}

func requestMetaFromContext(ctx context.Context) requestMeta {
	if ctx == nil {
		return requestMeta{}
	}
	m, _ := ctx.Value(authCtxKeyRequestMeta).(requestMeta)
	return m
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

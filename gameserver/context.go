package gameserver

import "context"

func withAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, addressContextKey, address)
}

func addressFrom(ctx context.Context) string {
	v, _ := ctx.Value(addressContextKey).(string)
	return v
}

package internal

import (
	"context"
	"io"
	"os"
)

type stdoutKey struct{}

// WithStdout scopes the writer command output goes to, letting callers and
// tests capture it without touching os.Stdout.
func WithStdout(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdoutKey{}, w)
}

func Stdout(ctx context.Context) io.Writer {
	w, ok := ctx.Value(stdoutKey{}).(io.Writer)
	if !ok {
		return os.Stdout
	}
	return w
}

package events

import "context"

type sessionIDKey struct{}
type workDirKey struct{}
type taskEnvKey struct{}

// ContextWithSessionID returns a new context carrying the session ID.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext extracts the session ID from the context, or "" if absent.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ContextWithWorkDir returns a new context carrying the task's working
// directory. A no-op if dir is empty.
func ContextWithWorkDir(ctx context.Context, dir string) context.Context {
	if dir == "" {
		return ctx
	}
	return context.WithValue(ctx, workDirKey{}, dir)
}

// WorkDirFromContext extracts the working directory from the context, or ""
// if absent.
func WorkDirFromContext(ctx context.Context) string {
	if dir, ok := ctx.Value(workDirKey{}).(string); ok {
		return dir
	}
	return ""
}

// ContextWithTaskEnv returns a new context carrying the worker environment
// for the task. A no-op if env is nil or empty.
func ContextWithTaskEnv(ctx context.Context, env map[string]string) context.Context {
	if len(env) == 0 {
		return ctx
	}
	return context.WithValue(ctx, taskEnvKey{}, env)
}

// TaskEnvFromContext extracts the worker environment from the context, or
// nil if absent.
func TaskEnvFromContext(ctx context.Context) map[string]string {
	if env, ok := ctx.Value(taskEnvKey{}).(map[string]string); ok {
		return env
	}
	return nil
}

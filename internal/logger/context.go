package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with the enriched context.
type LogFields struct {
	ProjectID       *int64
	MergeRequestIID *int64
	DiscussionID    *string
	UserID          *int64
}

// WithLogFields merges fields into the context. Non-nil values replace earlier ones.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	if fields.ProjectID != nil {
		merged.ProjectID = fields.ProjectID
	}
	if fields.MergeRequestIID != nil {
		merged.MergeRequestIID = fields.MergeRequestIID
	}
	if fields.DiscussionID != nil {
		merged.DiscussionID = fields.DiscussionID
	}
	if fields.UserID != nil {
		merged.UserID = fields.UserID
	}
	return context.WithValue(ctx, logFieldsKey, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func Ptr[T any](v T) *T {
	return &v
}

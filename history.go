package counsel

import "context"

// HistoryProvider supplies a user's historical context.
// Implementations return the zero HistoricalContext for users with no history.
type HistoryProvider interface {
	Historical(ctx context.Context, userID string) (HistoricalContext, error)
}

// HistoryFunc adapts a function to the HistoryProvider interface.
type HistoryFunc func(ctx context.Context, userID string) (HistoricalContext, error)

// Historical calls f.
func (f HistoryFunc) Historical(ctx context.Context, userID string) (HistoricalContext, error) {
	return f(ctx, userID)
}

// NoHistory reports an empty history for every user.
type NoHistory struct{}

// Historical returns the empty history.
func (NoHistory) Historical(context.Context, string) (HistoricalContext, error) {
	return HistoricalContext{
		PreviousTopics:       []string{},
		SuccessfulStrategies: []string{},
		Preferences:          map[string]string{},
		CompanyMetrics:       map[string]string{},
	}, nil
}

var _ HistoryProvider = NoHistory{}

package libemit

import "go.uber.org/zap"

type zapLogger struct {
	*zap.SugaredLogger
}

func NewZapLogger(sugar *zap.SugaredLogger) Logger {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return zapLogger{SugaredLogger: sugar}
}

func (l zapLogger) WithField(key string, value any) Logger {
	return zapLogger{SugaredLogger: l.SugaredLogger.With(key, value)}
}

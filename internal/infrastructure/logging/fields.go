package logging

import "go.uber.org/zap"

// Field keys shared by the client, the stream and the fake control panel,
// so one grep follows a call across both sides.

func Endpoint(name string) zap.Field { return zap.String("endpoint", name) }

func RequestID(id string) zap.Field { return zap.String("request_id", id) }

func StreamID(id string) zap.Field { return zap.String("stream_id", id) }

func Event(name string) zap.Field { return zap.String("event", name) }

func User(name string) zap.Field { return zap.String("user", name) }

// Status logs an event code and page code pair.
func Status(code, page int) zap.Field {
	return zap.Dict("status", zap.Int("code", code), zap.Int("page", page))
}

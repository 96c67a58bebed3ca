package inhttp

import "github.com/rs/zerolog"

func init() {
	zerolog.CallerFieldName = "C"
	zerolog.MessageFieldName = "M"
	zerolog.LevelFieldName = "L"
	zerolog.ErrorFieldName = "E"
	zerolog.TimestampFieldName = "T"
	zerolog.ErrorStackFieldName = "S"
}

// nopLogger keeps parsing silent unless the caller hands a real logger
// in via Config.Logger.
var nopLogger = zerolog.Nop()

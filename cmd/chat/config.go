package main

import "time"

type Config struct {
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath             string        `env:"BLUGE_FILEPATH"`
	SessionSecret             string        `env:"SESSION_SECRET,required=true"`
	SessionToken              string        `env:"SESSION_TOKEN,required=true"`
	CensoredWords             []string      `env:"CENSORED_WORDS"`
	ModerationCharReplacement rune          `env:"MODERATION_CHARACTER_REPLACEMENT"`
	ConversationLimit         int           `env:"CONVERSATION_LIMIT,default=50"`
	HeartbeatInterval         time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	LogLevel                  string        `env:"LOG_LEVEL,default=INFO"`
}
